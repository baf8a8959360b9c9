package generator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CLIGateway shells out to the claude CLI for local dev generation.
// Uses your existing Claude plan — no API key needed, no per-token charges.
// Token streaming is not available in this mode; the buffer arrives whole.
type CLIGateway struct {
	cliPath string
}

func NewCLIGateway(cliPath string) *CLIGateway {
	return &CLIGateway{cliPath: cliPath}
}

func (g *CLIGateway) ModelName(tier Tier) string {
	return "claude-cli"
}

func (g *CLIGateway) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	cmd := exec.CommandContext(ctx,
		g.cliPath,
		"--print",
		"--output-format", "text",
		"--system-prompt", req.System,
		"--max-turns", "1",
	)

	cmd.Stdin = strings.NewReader(req.Prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if ctx.Err() != nil {
		return nil, &TransportError{Tier: req.Tier, Err: ctx.Err()}
	}

	if err := cmd.Run(); err != nil {
		return nil, &TransportError{
			Tier: req.Tier,
			Err:  fmt.Errorf("claude CLI error: %w\nstderr: %s", err, stderr.String()),
		}
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return nil, &TransportError{Tier: req.Tier, Err: fmt.Errorf("claude CLI returned empty response")}
	}

	if req.OnToken != nil {
		req.OnToken(text)
	}

	return &Completion{Text: text}, nil
}
