package activities

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/steplab/backend/internal/generator"
	"github.com/steplab/backend/internal/models"
)

// ArtifactStore is the read-before-generate / write-after-generate cache
// keyed by normalized request parameters.
type ArtifactStore interface {
	Get(ctx context.Context, cacheKey string) (*models.ActivityArtifact, error)
	GetByID(ctx context.Context, artifactID string) (*models.ActivityArtifact, error)
	Put(ctx context.Context, cacheKey string, req models.GenerationRequest, artifact *models.ActivityArtifact, modelUsed string, elapsedMs int64) error
}

// CacheKey derives the artifact key from the normalized request plus the
// prompt catalog version, so prompt revisions invalidate old artifacts.
func CacheKey(req models.GenerationRequest) string {
	normalized := req
	normalized.Topic = strings.ToLower(strings.TrimSpace(req.Topic))
	normalized.SourceText = strings.TrimSpace(req.SourceText)
	normalized.Tone = strings.ToLower(strings.TrimSpace(req.Tone))
	if normalized.Style == "" {
		normalized.Style = models.StyleStandard
	}

	data, _ := json.Marshal(normalized)
	sum := sha256.Sum256(append(data, []byte(generator.CatalogVersion)...))
	return hex.EncodeToString(sum[:])
}

// Store is the Postgres-backed ArtifactStore.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, cacheKey string) (*models.ActivityArtifact, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM activity_artifacts WHERE cache_key = $1`,
		cacheKey,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return decodeArtifact(doc)
}

func (s *Store) GetByID(ctx context.Context, artifactID string) (*models.ActivityArtifact, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM activity_artifacts WHERE artifact_id = $1`,
		artifactID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact by id: %w", err)
	}
	return decodeArtifact(doc)
}

func (s *Store) Put(ctx context.Context, cacheKey string, req models.GenerationRequest, artifact *models.ActivityArtifact, modelUsed string, elapsedMs int64) error {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	docJSON, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activity_artifacts (artifact_id, cache_key, request, document, model_used, generation_time_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (cache_key) DO UPDATE SET
		   artifact_id = EXCLUDED.artifact_id,
		   document = EXCLUDED.document,
		   model_used = EXCLUDED.model_used,
		   generation_time_ms = EXCLUDED.generation_time_ms,
		   created_at = NOW()`,
		artifact.ID, cacheKey, reqJSON, docJSON, modelUsed, elapsedMs,
	)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

func decodeArtifact(doc []byte) (*models.ActivityArtifact, error) {
	var artifact models.ActivityArtifact
	if err := json.Unmarshal(doc, &artifact); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return &artifact, nil
}
