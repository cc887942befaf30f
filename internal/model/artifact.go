package model

import "time"

// ArtifactKind distinguishes the three ingestible artifact families.
type ArtifactKind string

const (
	ArtifactSource ArtifactKind = "source"
	ArtifactBinary ArtifactKind = "binary"
	ArtifactLog    ArtifactKind = "log"
)

// StorageMode controls what is persisted from ingested artifacts.
// The default keeps only derived features, never raw source or binaries.
type StorageMode string

const (
	StorageDerivedOnly StorageMode = "derived_features_only"
	StorageFullSource  StorageMode = "full_source_internal"
)

// ArtifactMeta is the stored metadata for one ingested artifact. The raw
// feature blob is stored separately, keyed by ArtifactID.
type ArtifactMeta struct {
	ArtifactID  string       `json:"artifact_id"`
	BuildID     string       `json:"build_id"`
	Component   string       `json:"component"`
	Kind        ArtifactKind `json:"kind"`
	Path        string       `json:"path"`
	IngestedAt  time.Time    `json:"ingested_at"`
	StorageMode StorageMode  `json:"storage_mode"`
}

// TriageState is the analyst-facing lifecycle of a queue item.
type TriageState string

const (
	TriagePending    TriageState = "pending"
	TriageAccepted   TriageState = "accepted"
	TriageDenied     TriageState = "denied"
	TriageInProgress TriageState = "in_progress"
)

// QueueItem is one row of the ranked worklist.
type QueueItem struct {
	ID        string      `json:"id"`
	DiffID    string      `json:"diff_id"`
	BuildFrom string      `json:"build_from"`
	BuildTo   string      `json:"build_to"`
	Component string      `json:"component"`
	Score     float64     `json:"score"`
	State     TriageState `json:"state"`
	Notes     string      `json:"notes,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// QueueFilter narrows the ranked queue query. Zero values mean "no filter";
// MinScore applies only when HasMinScore is set.
type QueueFilter struct {
	Component   string
	State       TriageState
	BuildFrom   string
	BuildTo     string
	MinScore    float64
	HasMinScore bool
}

// DiffDetail is the full stored record for one diff.
type DiffDetail struct {
	ID             string         `json:"id"`
	BuildFrom      string         `json:"build_from"`
	BuildTo        string         `json:"build_to"`
	Component      string         `json:"component"`
	EvidenceBundle EvidenceBundle `json:"evidence_bundle"`
	ScoreResult    *ScoreResult   `json:"score_result,omitempty"`
	State          TriageState    `json:"state"`
	Notes          string         `json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
