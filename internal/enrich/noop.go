package enrich

import (
	"context"

	"ossensor/internal/model"
)

// NoopEnricher returns every draft unchanged. This is rules-only operation
// and the behavior of an unconfigured deployment.
type NoopEnricher struct{}

func (NoopEnricher) EnrichTriage(_ context.Context, _ string, _ *model.ScoreResult, _ *model.EvidenceBundle, base *model.TriageReport) *model.TriageReport {
	return base
}

func (NoopEnricher) EnrichReverseContext(_ context.Context, _ string, _ *model.EvidenceBundle, base *model.ReverseContextReport) *model.ReverseContextReport {
	return base
}

func (NoopEnricher) EnrichHypotheses(_ context.Context, _ string, _ *model.EvidenceBundle, base *model.VulnHypotheses) *model.VulnHypotheses {
	return base
}

func (NoopEnricher) EnrichFuzzPlan(_ context.Context, _ string, _ *model.EvidenceBundle, base *model.FuzzPlan) *model.FuzzPlan {
	return base
}

func (NoopEnricher) EnrichTelemetry(_ context.Context, _ string, _ *model.EvidenceBundle, base *model.TelemetryRecommendations) *model.TelemetryRecommendations {
	return base
}
