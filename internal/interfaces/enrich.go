package interfaces

import (
	"context"

	"ossensor/internal/model"
)

// Enricher optionally rewrites report narratives. Implementations must never
// introduce evidence references that are not derivable from the bundle; the
// grounding gate enforces this, and every method falls back to the base draft
// on any failure. The no-op implementation returns drafts unchanged, which is
// also the behavior when no provider is configured.
type Enricher interface {
	EnrichTriage(ctx context.Context, diffID string, score *model.ScoreResult, bundle *model.EvidenceBundle, base *model.TriageReport) *model.TriageReport
	EnrichReverseContext(ctx context.Context, diffID string, bundle *model.EvidenceBundle, base *model.ReverseContextReport) *model.ReverseContextReport
	EnrichHypotheses(ctx context.Context, diffID string, bundle *model.EvidenceBundle, base *model.VulnHypotheses) *model.VulnHypotheses
	EnrichFuzzPlan(ctx context.Context, diffID string, bundle *model.EvidenceBundle, base *model.FuzzPlan) *model.FuzzPlan
	EnrichTelemetry(ctx context.Context, diffID string, bundle *model.EvidenceBundle, base *model.TelemetryRecommendations) *model.TelemetryRecommendations
}

// Transport is the single operation an enrichment backend must provide:
// given a system instruction and a user payload, return raw text. The caller
// bounds the call with the context; timeout is treated as failure.
type Transport interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
