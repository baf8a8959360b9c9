package activities

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/steplab/backend/internal/generator"
	"github.com/steplab/backend/internal/models"
	"github.com/steplab/backend/internal/stream"
	"golang.org/x/sync/errgroup"
)

// OrchestrationError is the only fatal error class: a malformed request or
// a rejected credential. It aborts before any stream event is emitted.
// Everything below it degrades to synthesized content instead of failing.
type OrchestrationError struct {
	Reason string
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestration error: %s", e.Reason)
}

// ValidateRequest checks request shape. It runs before any stream work so
// a rejection never leaks partial content.
func ValidateRequest(req models.GenerationRequest) *OrchestrationError {
	if (req.Topic == "") == (req.SourceText == "") {
		return &OrchestrationError{Reason: "exactly one of topic and source_text is required"}
	}
	if req.Mode != models.ModeLearning && req.Mode != models.ModeExam {
		return &OrchestrationError{Reason: fmt.Sprintf("invalid mode %q", req.Mode)}
	}
	if req.Grade < 1 || req.Grade > 13 {
		return &OrchestrationError{Reason: fmt.Sprintf("grade %d outside range [1, 13]", req.Grade)}
	}
	switch req.Length {
	case "", models.LengthShort, models.LengthMedium, models.LengthLong:
	default:
		return &OrchestrationError{Reason: fmt.Sprintf("invalid length %q", req.Length)}
	}
	switch req.Style {
	case "", models.StyleStandard, models.StyleDialogic, models.StyleCreative:
	default:
		return &OrchestrationError{Reason: fmt.Sprintf("invalid style %q", req.Style)}
	}
	if w := req.BloomWeights; w != nil {
		if w.Knowledge < 0 || w.Application < 0 || w.Evaluation < 0 {
			return &OrchestrationError{Reason: "bloom weights must be non-negative"}
		}
		if w.Knowledge+w.Application+w.Evaluation == 0 {
			return &OrchestrationError{Reason: "bloom weights must not all be zero"}
		}
	}
	return nil
}

// Service is the generation orchestrator: it drives skeleton resolution,
// parallel step expansion, aggregate assembly, and the final event, with
// the artifact cache wrapped around the whole flow.
type Service struct {
	planner      *generator.Planner
	expander     *generator.Expander
	gateway      generator.Gateway
	store        ArtifactStore
	cacheEnabled bool
}

func NewService(gateway generator.Gateway, store ArtifactStore) *Service {
	cacheEnabled := os.Getenv("ARTIFACT_CACHE_ENABLED") != "false" && store != nil
	log.Printf("Activities service: cache=%v", cacheEnabled)
	return &Service{
		planner:      generator.NewPlanner(gateway),
		expander:     generator.NewExpander(gateway),
		gateway:      gateway,
		store:        store,
		cacheEnabled: cacheEnabled,
	}
}

// Generate runs one generation job, publishing progress to pub. The
// request must already be validated. Generation never fails: every
// upstream failure degrades to synthesized content.
func (s *Service) Generate(ctx context.Context, req models.GenerationRequest, pub *stream.Publisher) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("WARN: generation panicked: %v", r)
			pub.Publish(stream.EventError, map[string]string{"error": "generation failed"}, nil)
		}
	}()

	if req.Length == "" {
		req.Length = models.LengthShort
	}

	cacheKey := CacheKey(req)
	if s.cacheEnabled {
		artifact, err := s.store.Get(ctx, cacheKey)
		if err != nil {
			log.Printf("WARN: artifact cache read failed: %v", err)
		} else if artifact != nil {
			s.replay(artifact, pub)
			return
		}
	}

	pub.Publish(stream.EventProgress, map[string]string{"phase": "planning"}, nil)

	start := time.Now()
	artifact := &models.ActivityArtifact{ID: uuid.NewString()}

	if req.Differentiated {
		// The full skeleton+expand flow fans out once per pedagogical
		// level; levels and their steps form a two-level task tree.
		docs := make([]models.ActivityDocument, len(models.AllLevels))
		var g errgroup.Group
		for i, level := range models.AllLevels {
			i, level := i, level
			g.Go(func() error {
				pub.Publish(stream.EventLevelStart, nil, map[string]any{"level": level})
				docs[i] = s.runFlow(ctx, req, level, pub)
				pub.Publish(stream.EventLevelComplete, nil, map[string]any{"level": level})
				return nil
			})
		}
		g.Wait()
		artifact.Documents = docs
	} else {
		artifact.Documents = []models.ActivityDocument{s.runFlow(ctx, req, "", pub)}
	}

	elapsed := time.Since(start).Milliseconds()

	if s.cacheEnabled {
		// Background context so the write survives a client disconnect.
		if err := s.store.Put(context.Background(), cacheKey, req, artifact, s.gateway.ModelName(generator.TierQuality), elapsed); err != nil {
			log.Printf("WARN: artifact cache write failed: %v", err)
		}
	}

	pub.Publish(stream.EventDone, map[string]any{"activity_id": artifact.ID}, map[string]any{
		"elapsed_ms": elapsed,
		"cached":     false,
	})
}

// runFlow is one skeleton-then-steps pass: the phase barrier between the
// two is the blocking Plan call. When the request asks for a practice
// part, a second exam-mode expansion of the same skeleton follows,
// bracketed by the part events. Practice is a whole-activity concern, so
// differentiated levels skip it.
func (s *Service) runFlow(ctx context.Context, req models.GenerationRequest, level models.PedagogicalLevel, pub *stream.Publisher) models.ActivityDocument {
	skeleton, report := s.planner.Plan(ctx, req, level)

	meta := map[string]any{"elapsed_ms": report.ElapsedMs, "fallback": report.Fallback}
	if level != "" {
		meta["level"] = level
	}
	pub.Publish(stream.EventSkeletonComplete, skeleton, meta)

	steps := s.expander.Expand(ctx, req, skeleton, level, req.Mode, stepPublisher(pub, level, 1))

	doc := models.ActivityDocument{
		ID:        uuid.NewString(),
		Title:     skeleton.Title,
		Mode:      req.Mode,
		Grade:     req.Grade,
		Level:     level,
		Steps:     steps,
		CreatedAt: time.Now().UTC(),
	}

	if req.WithPractice && req.Mode == models.ModeLearning && level == "" {
		pub.Publish(stream.EventPart1Complete, nil, map[string]any{"steps": len(steps)})
		doc.Practice = s.expander.Expand(ctx, req, skeleton, level, models.ModeExam, stepPublisher(pub, level, 2))
		pub.Publish(stream.EventPart2Complete, nil, map[string]any{"steps": len(doc.Practice)})
	}

	return doc
}

// stepPublisher adapts the publisher into the expander's completion
// callback; the publisher's single lock is the serialization point for
// the parallel step tasks.
func stepPublisher(pub *stream.Publisher, level models.PedagogicalLevel, part int) func(models.StepContent, generator.StepReport) {
	return func(content models.StepContent, report generator.StepReport) {
		meta := map[string]any{
			"step_number": report.StepNumber,
			"elapsed_ms":  report.ElapsedMs,
			"part":        part,
		}
		if level != "" {
			meta["level"] = level
		}
		pub.Publish(stream.EventStepComplete, content, meta)
	}
}

// replay re-emits a cached artifact as the standard event sequence, so
// consumers cannot tell a cache hit from a fresh generation except by the
// cached metadata flag.
func (s *Service) replay(artifact *models.ActivityArtifact, pub *stream.Publisher) {
	differentiated := len(artifact.Documents) > 1

	for _, doc := range artifact.Documents {
		meta := map[string]any{"cached": true}
		if differentiated {
			meta["level"] = doc.Level
			pub.Publish(stream.EventLevelStart, nil, map[string]any{"level": doc.Level, "cached": true})
		}

		skeleton := models.Skeleton{Title: doc.Title}
		for _, step := range doc.Steps {
			skeleton.Steps = append(skeleton.Steps, step.Spec)
		}
		pub.Publish(stream.EventSkeletonComplete, skeleton, meta)

		for _, step := range doc.Steps {
			pub.Publish(stream.EventStepComplete, step, map[string]any{
				"step_number": step.Spec.StepNumber, "part": 1, "cached": true,
			})
		}
		if len(doc.Practice) > 0 {
			pub.Publish(stream.EventPart1Complete, nil, map[string]any{"steps": len(doc.Steps), "cached": true})
			for _, step := range doc.Practice {
				pub.Publish(stream.EventStepComplete, step, map[string]any{
					"step_number": step.Spec.StepNumber, "part": 2, "cached": true,
				})
			}
			pub.Publish(stream.EventPart2Complete, nil, map[string]any{"steps": len(doc.Practice), "cached": true})
		}

		if differentiated {
			pub.Publish(stream.EventLevelComplete, nil, map[string]any{"level": doc.Level, "cached": true})
		}
	}

	pub.Publish(stream.EventDone, map[string]any{"activity_id": artifact.ID}, map[string]any{
		"elapsed_ms": int64(0),
		"cached":     true,
	})
}
