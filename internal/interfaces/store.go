package interfaces

import (
	"context"
	"encoding/json"

	"ossensor/internal/model"
)

// Store is the minimal cross-package contract for persisting artifacts,
// diffs, scores and reports. Implementations should be safe for concurrent
// use. The pipeline core never talks to a database directly; it only sees
// this interface.
type Store interface {
	// EnsureBuild records a build id if it is not already known.
	EnsureBuild(ctx context.Context, buildID string) error

	// StoreArtifact persists artifact metadata plus its derived feature blob
	// and returns the generated artifact id.
	StoreArtifact(ctx context.Context, buildID, component string, kind model.ArtifactKind, path string, features any) (string, error)

	// GetArtifact returns metadata for one artifact, or ErrArtifactNotFound.
	GetArtifact(ctx context.Context, artifactID string) (*model.ArtifactMeta, error)

	// GetArtifactFeatures decodes the stored feature blob into out.
	GetArtifactFeatures(ctx context.Context, artifactID string, out any) error

	// ListArtifacts filters by build, component and kind; empty values match all.
	ListArtifacts(ctx context.Context, buildID, component string, kind model.ArtifactKind) ([]model.ArtifactMeta, error)

	// CreateDiff stores a new diff record with its evidence bundle and
	// returns the opaque diff id.
	CreateDiff(ctx context.Context, buildFrom, buildTo, component string, bundle *model.EvidenceBundle) (string, error)

	// GetDiff returns the full diff record, or ErrDiffNotFound.
	GetDiff(ctx context.Context, diffID string) (*model.DiffDetail, error)

	// SetDiffScore attaches a score result to an existing diff.
	SetDiffScore(ctx context.Context, diffID string, score *model.ScoreResult) error

	// UpdateTriage sets the analyst triage state and notes for a diff.
	UpdateTriage(ctx context.Context, diffID string, state model.TriageState, notes string) error

	// Queue returns the ranked worklist, highest score first.
	Queue(ctx context.Context, filter model.QueueFilter) ([]model.QueueItem, error)

	// StoreReport persists one report payload for a diff, replacing any
	// previous payload of the same type.
	StoreReport(ctx context.Context, diffID, reportType string, payload any) error

	// GetReports returns all stored report payloads for a diff keyed by type.
	GetReports(ctx context.Context, diffID string) (map[string]json.RawMessage, error)

	// Close releases the underlying resources.
	Close() error
}
