package enrich

import (
	"context"

	"ossensor/internal/interfaces"
	"ossensor/internal/logging"
	"ossensor/internal/model"
)

// GatedEnricher drives a completion transport and pushes every response
// through the grounding gate. All five methods share the same contract: on
// any failure the unmodified draft comes back, and successful responses keep
// only citations the bundle can support.
type GatedEnricher struct {
	transport interfaces.Transport
	logger    logging.Logger
}

// NewGatedEnricher wraps a transport. A nil logger falls back to stdout.
func NewGatedEnricher(transport interfaces.Transport, logger logging.Logger) *GatedEnricher {
	if logger == nil {
		logger = logging.NewStdoutLogger("enrich")
	}
	return &GatedEnricher{
		transport: transport,
		logger:    logger.With(logging.Field{Key: "component", Value: "enrich"}),
	}
}

// complete runs one transport call and returns the raw text, or "" when the
// draft should be kept.
func (e *GatedEnricher) complete(ctx context.Context, diffID, system, user string) string {
	raw, err := e.transport.Complete(ctx, system, user)
	if err != nil {
		e.logger.Warn("enrichment call failed, keeping draft",
			logging.Field{Key: "diff_id", Value: diffID},
			logging.Field{Key: "error", Value: err.Error()})
		return ""
	}
	return raw
}

func (e *GatedEnricher) EnrichTriage(ctx context.Context, diffID string, score *model.ScoreResult, bundle *model.EvidenceBundle, base *model.TriageReport) *model.TriageReport {
	allow := NewAllowList(bundle)
	system, user := triagePrompt(diffID, score, base, allow.Instruction())
	raw := e.complete(ctx, diffID, system, user)
	if raw == "" {
		return base
	}
	enriched, ok := parseTriage(raw, base, allow)
	if !ok {
		e.logger.Warn("enrichment response unparsable, keeping draft",
			logging.Field{Key: "diff_id", Value: diffID},
			logging.Field{Key: "report", Value: model.ReportTriage})
		return base
	}
	return enriched
}

func (e *GatedEnricher) EnrichReverseContext(ctx context.Context, diffID string, bundle *model.EvidenceBundle, base *model.ReverseContextReport) *model.ReverseContextReport {
	allow := NewAllowList(bundle)
	system, user := reverseContextPrompt(diffID, base, allow.Instruction())
	raw := e.complete(ctx, diffID, system, user)
	if raw == "" {
		return base
	}
	enriched, ok := parseReverseContext(raw, base, allow)
	if !ok {
		e.logger.Warn("enrichment response unparsable, keeping draft",
			logging.Field{Key: "diff_id", Value: diffID},
			logging.Field{Key: "report", Value: model.ReportReverseContext})
		return base
	}
	return enriched
}

func (e *GatedEnricher) EnrichHypotheses(ctx context.Context, diffID string, bundle *model.EvidenceBundle, base *model.VulnHypotheses) *model.VulnHypotheses {
	allow := NewAllowList(bundle)
	system, user := hypothesesPrompt(diffID, base, allow.Instruction())
	raw := e.complete(ctx, diffID, system, user)
	if raw == "" {
		return base
	}
	enriched, ok := parseHypotheses(raw, base, allow)
	if !ok {
		e.logger.Warn("enrichment response unparsable, keeping draft",
			logging.Field{Key: "diff_id", Value: diffID},
			logging.Field{Key: "report", Value: model.ReportVulnHypotheses})
		return base
	}
	return enriched
}

func (e *GatedEnricher) EnrichFuzzPlan(ctx context.Context, diffID string, bundle *model.EvidenceBundle, base *model.FuzzPlan) *model.FuzzPlan {
	allow := NewAllowList(bundle)
	system, user := fuzzPlanPrompt(diffID, base, allow.Instruction())
	raw := e.complete(ctx, diffID, system, user)
	if raw == "" {
		return base
	}
	enriched, ok := parseFuzzPlan(raw, base, allow)
	if !ok {
		e.logger.Warn("enrichment response unparsable, keeping draft",
			logging.Field{Key: "diff_id", Value: diffID},
			logging.Field{Key: "report", Value: model.ReportFuzzPlan})
		return base
	}
	return enriched
}

func (e *GatedEnricher) EnrichTelemetry(ctx context.Context, diffID string, bundle *model.EvidenceBundle, base *model.TelemetryRecommendations) *model.TelemetryRecommendations {
	allow := NewAllowList(bundle)
	system, user := telemetryPrompt(diffID, base, allow.Instruction())
	raw := e.complete(ctx, diffID, system, user)
	if raw == "" {
		return base
	}
	enriched, ok := parseTelemetry(raw, base, allow)
	if !ok {
		e.logger.Warn("enrichment response unparsable, keeping draft",
			logging.Field{Key: "diff_id", Value: diffID},
			logging.Field{Key: "report", Value: model.ReportTelemetry})
		return base
	}
	return enriched
}
