package generator

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/steplab/backend/internal/models"
)

// Tier names one of the two completion tiers. The fast tier plans
// skeletons; the quality tier writes step content.
type Tier string

const (
	TierFast    Tier = "fast"
	TierQuality Tier = "quality"
)

// TransportError wraps any provider failure (unreachable, timeout, empty
// response). Callers treat it as a signal to fall back to synthesized
// content; it never becomes a request failure.
type TransportError struct {
	Tier Tier
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("completion transport failed (tier=%s): %v", e.Tier, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CompletionRequest is one call to the completion provider.
type CompletionRequest struct {
	Tier        Tier
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
	// OnToken, when set, receives each text token as it streams in. The
	// full buffer is always accumulated and returned regardless.
	OnToken func(token string)
}

// Completion holds the accumulated response text and token usage.
type Completion struct {
	Text         string
	PromptTokens int
	OutputTokens int
}

// Gateway abstracts the two-tier text-completion provider. Built once at
// process start and passed by reference; never a package-level singleton.
type Gateway interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	ModelName(tier Tier) string
}

// TemperatureFor implements the fixed temperature policy: 0.3 under exam
// mode, 0.8 for dialogic or creative styles, 0.7 otherwise.
func TemperatureFor(mode models.Mode, style models.ProductStyle) float64 {
	if mode == models.ModeExam {
		return 0.3
	}
	if style == models.StyleDialogic || style == models.StyleCreative {
		return 0.8
	}
	return 0.7
}

// NewGateway selects a gateway implementation from the environment, the
// same three-way split the rest of the deploy tooling expects: claude CLI
// for local plans, mock for offline dev, Anthropic API otherwise.
func NewGateway() Gateway {
	if os.Getenv("USE_CLI_GATEWAY") == "true" {
		cliPath := os.Getenv("CLAUDE_CLI_PATH")
		if cliPath == "" {
			cliPath = "claude"
		}
		log.Println("Gateway using Claude CLI (local plan)")
		return NewCLIGateway(cliPath)
	}
	if os.Getenv("MOCK_GATEWAY") == "true" {
		log.Println("Gateway using mock completions")
		return NewMockGateway()
	}

	fastModel := os.Getenv("ANTHROPIC_FAST_MODEL")
	if fastModel == "" {
		fastModel = "claude-3-5-haiku-20241022"
	}
	qualityModel := os.Getenv("ANTHROPIC_QUALITY_MODEL")
	if qualityModel == "" {
		qualityModel = "claude-sonnet-4-5-20250929"
	}
	log.Printf("Gateway using Anthropic API: fast=%s quality=%s", fastModel, qualityModel)
	return NewAPIGateway(fastModel, qualityModel)
}

// ── APIGateway: Anthropic SDK (Production) ────────────────

type APIGateway struct {
	client       *anthropic.Client
	fastModel    string
	qualityModel string
}

func NewAPIGateway(fastModel, qualityModel string) *APIGateway {
	client := anthropic.NewClient(
		option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	return &APIGateway{
		client:       &client,
		fastModel:    fastModel,
		qualityModel: qualityModel,
	}
}

func (g *APIGateway) ModelName(tier Tier) string {
	if tier == TierFast {
		return g.fastModel
	}
	return g.qualityModel
}

func (g *APIGateway) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.ModelName(req.Tier)),
		MaxTokens:   maxTokens,
		Temperature: param.NewOpt(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	stream := g.client.Messages.NewStreaming(ctx, params)
	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, &TransportError{Tier: req.Tier, Err: fmt.Errorf("accumulate stream event: %w", err)}
		}
		if req.OnToken != nil {
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if ev.Delta.Text != "" {
					req.OnToken(ev.Delta.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, &TransportError{Tier: req.Tier, Err: err}
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, &TransportError{Tier: req.Tier, Err: fmt.Errorf("no text content in response")}
	}

	return &Completion{
		Text:         text,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}
