package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"ossensor/internal/binfeat"
	"ossensor/internal/bundle"
	"ossensor/internal/diffengine"
	"ossensor/internal/enrich"
	"ossensor/internal/features"
	"ossensor/internal/interfaces"
	"ossensor/internal/logfeat"
	"ossensor/internal/logging"
	"ossensor/internal/model"
	"ossensor/internal/reports"
	"ossensor/internal/scoring"
	"ossensor/internal/store"
)

// analyzeStages is the progress denominator for one analysis run: diff,
// score, reports.
const analyzeStages = 3

// Orchestrator ties the pipeline stages together: it ingests artifacts,
// runs the diff-to-reports pipeline for a pair of builds, and fronts the
// store for the API and CLI surfaces.
type Orchestrator struct {
	cfg       *Config
	store     interfaces.Store
	logger    logging.Logger
	diff      *diffengine.Engine
	extractor *features.Extractor
	binary    interfaces.BinaryAnalyzer
	logs      interfaces.LogAnalyzer
	generator *reports.Generator
	enricher  interfaces.Enricher
	weights   scoring.Weights

	jobsMu     sync.Mutex
	jobs       map[string]*Job
	jobCancels map[string]context.CancelFunc
	closed     bool
}

// NewOrchestrator wires the pipeline around a store and an enricher. A nil
// enricher means rules-only operation.
func NewOrchestrator(cfg *Config, st interfaces.Store, enricher interfaces.Enricher, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("orchestrator")
	}
	if enricher == nil {
		enricher = enrich.NoopEnricher{}
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     st,
		logger:    logger,
		diff:      diffengine.NewEngine(nil, logger),
		extractor: features.NewExtractor(logger),
		binary:    binfeat.NewAnalyzer(logger),
		logs:      logfeat.NewExtractor(logger),
		generator: reports.NewGenerator(),
		enricher:  enricher,
		weights:   effectiveWeights(cfg),
	}
}

// IngestSource registers a source tree for a build. The tree is diffed in
// place at analysis time; only the path and metadata are persisted.
func (o *Orchestrator) IngestSource(ctx context.Context, buildID, component, path string) (string, error) {
	if err := o.store.EnsureBuild(ctx, buildID); err != nil {
		return "", err
	}
	return o.store.StoreArtifact(ctx, buildID, component, model.ArtifactSource, path, nil)
}

// IngestBinary extracts binary features and persists them as the artifact's
// derived blob. The binary itself is never stored.
func (o *Orchestrator) IngestBinary(ctx context.Context, buildID, component, path string) (string, error) {
	if err := o.store.EnsureBuild(ctx, buildID); err != nil {
		return "", err
	}
	set, err := o.binary.ExtractFeatures(path)
	if err != nil {
		return "", fmt.Errorf("extracting binary features: %w", err)
	}
	return o.store.StoreArtifact(ctx, buildID, component, model.ArtifactBinary, path, set)
}

// IngestLogs extracts log templates and persists them as the artifact's
// derived blob.
func (o *Orchestrator) IngestLogs(ctx context.Context, buildID, component, path string) (string, error) {
	if err := o.store.EnsureBuild(ctx, buildID); err != nil {
		return "", err
	}
	templates, err := o.logs.ExtractTemplates(path)
	if err != nil {
		return "", fmt.Errorf("extracting log templates: %w", err)
	}
	return o.store.StoreArtifact(ctx, buildID, component, model.ArtifactLog, path, templates)
}

// AnalysisResult is what one pipeline run produces.
type AnalysisResult struct {
	DiffID  string             `json:"diff_id"`
	Score   *model.ScoreResult `json:"score"`
	Reports *model.ReportSet   `json:"reports"`
}

// ComputeDiff diffs the ingested source trees of two builds, extracts
// features, assembles the evidence bundle with the ingested binary and log
// features, and stores the diff record. It returns the new diff id and the
// assembled bundle.
func (o *Orchestrator) ComputeDiff(ctx context.Context, buildFrom, buildTo, component string) (string, *model.EvidenceBundle, error) {
	fromRoot, err := o.sourceRoot(ctx, buildFrom, component)
	if err != nil {
		return "", nil, err
	}
	toRoot, err := o.sourceRoot(ctx, buildTo, component)
	if err != nil {
		return "", nil, err
	}

	hunks, err := o.diff.ExtractDiff(fromRoot, toRoot)
	if err != nil {
		return "", nil, fmt.Errorf("diffing source trees: %w", err)
	}
	sourceFeatures := o.extractor.Extract(hunks)
	binaryFrom := o.binaryFeatures(ctx, buildFrom, component)
	binaryTo := o.binaryFeatures(ctx, buildTo, component)
	templates := o.logTemplates(ctx, buildTo, component)

	evb := bundle.Assemble(hunks, sourceFeatures, binaryFrom, binaryTo, templates)

	diffID, err := o.store.CreateDiff(ctx, buildFrom, buildTo, component, evb)
	if err != nil {
		return "", nil, fmt.Errorf("storing diff: %w", err)
	}

	o.logger.Info("diff computed",
		logging.Field{Key: "diff_id", Value: diffID},
		logging.Field{Key: "component", Value: component},
		logging.Field{Key: "hunks", Value: len(hunks)},
		logging.Field{Key: "source_features", Value: len(sourceFeatures)})
	return diffID, evb, nil
}

// ScoreDiff scores a stored diff's bundle and attaches the result.
func (o *Orchestrator) ScoreDiff(ctx context.Context, diffID string) (*model.ScoreResult, error) {
	detail, err := o.store.GetDiff(ctx, diffID)
	if err != nil {
		return nil, err
	}
	score := scoring.Score(diffID, &detail.EvidenceBundle, o.weights)
	if err := o.store.SetDiffScore(ctx, diffID, score); err != nil {
		return nil, fmt.Errorf("storing score: %w", err)
	}
	return score, nil
}

// GenerateReports produces the five report drafts for a stored diff and
// persists them, optionally after enrichment. An unscored diff is scored
// first. Each report is persisted only after the grounding gate has
// returned; cancellation between gate return and persistence drops the
// whole set rather than storing a partial one.
func (o *Orchestrator) GenerateReports(ctx context.Context, diffID string, enrichReports bool) (*model.ReportSet, error) {
	detail, err := o.store.GetDiff(ctx, diffID)
	if err != nil {
		return nil, err
	}
	score := detail.ScoreResult
	if score == nil {
		if score, err = o.ScoreDiff(ctx, diffID); err != nil {
			return nil, err
		}
	}

	evb := &detail.EvidenceBundle
	set := o.generator.GenerateAll(diffID, score, evb)
	if enrichReports {
		set = &model.ReportSet{
			Triage:         o.enricher.EnrichTriage(ctx, diffID, score, evb, set.Triage),
			ReverseContext: o.enricher.EnrichReverseContext(ctx, diffID, evb, set.ReverseContext),
			VulnHypotheses: o.enricher.EnrichHypotheses(ctx, diffID, evb, set.VulnHypotheses),
			FuzzPlan:       o.enricher.EnrichFuzzPlan(ctx, diffID, evb, set.FuzzPlan),
			Telemetry:      o.enricher.EnrichTelemetry(ctx, diffID, evb, set.Telemetry),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.persistReports(ctx, diffID, set); err != nil {
		return nil, err
	}
	return set, nil
}

// AnalyzeBuilds runs the full pipeline for one (from, to, component) pair:
// ComputeDiff, ScoreDiff, GenerateReports.
func (o *Orchestrator) AnalyzeBuilds(ctx context.Context, buildFrom, buildTo, component string, enrichReports bool, progress func(processed, total int)) (*AnalysisResult, error) {
	if progress == nil {
		progress = func(int, int) {}
	}

	diffID, _, err := o.ComputeDiff(ctx, buildFrom, buildTo, component)
	if err != nil {
		return nil, err
	}
	progress(1, analyzeStages)

	score, err := o.ScoreDiff(ctx, diffID)
	if err != nil {
		return nil, err
	}
	progress(2, analyzeStages)

	set, err := o.GenerateReports(ctx, diffID, enrichReports)
	if err != nil {
		return nil, err
	}
	progress(3, analyzeStages)

	o.logger.Info("analysis complete",
		logging.Field{Key: "diff_id", Value: diffID},
		logging.Field{Key: "component", Value: component},
		logging.Field{Key: "total_score", Value: score.TotalScore})

	return &AnalysisResult{DiffID: diffID, Score: score, Reports: set}, nil
}

func (o *Orchestrator) persistReports(ctx context.Context, diffID string, set *model.ReportSet) error {
	payloads := []struct {
		reportType string
		payload    any
	}{
		{model.ReportTriage, set.Triage},
		{model.ReportReverseContext, set.ReverseContext},
		{model.ReportVulnHypotheses, set.VulnHypotheses},
		{model.ReportFuzzPlan, set.FuzzPlan},
		{model.ReportTelemetry, set.Telemetry},
	}
	for _, p := range payloads {
		if err := o.store.StoreReport(ctx, diffID, p.reportType, p.payload); err != nil {
			return fmt.Errorf("storing %s report: %w", p.reportType, err)
		}
	}
	return nil
}

// sourceRoot resolves the source tree path for a build and component. A
// build without an ingested source tree diffs as empty, so the path may be
// empty without being an error.
func (o *Orchestrator) sourceRoot(ctx context.Context, buildID, component string) (string, error) {
	metas, err := o.store.ListArtifacts(ctx, buildID, component, model.ArtifactSource)
	if err != nil {
		return "", fmt.Errorf("listing source artifacts for build %s: %w", buildID, err)
	}
	if len(metas) == 0 {
		return "", nil
	}
	// Latest ingest wins when a tree was re-ingested.
	return metas[len(metas)-1].Path, nil
}

func (o *Orchestrator) binaryFeatures(ctx context.Context, buildID, component string) []model.BinaryFeature {
	metas, err := o.store.ListArtifacts(ctx, buildID, component, model.ArtifactBinary)
	if err != nil {
		o.logger.Warn("listing binary artifacts, continuing without binary evidence",
			logging.Field{Key: "build_id", Value: buildID},
			logging.Field{Key: "error", Value: err.Error()})
		return nil
	}
	var out []model.BinaryFeature
	for _, meta := range metas {
		var set model.BinaryFeatureSet
		if err := o.store.GetArtifactFeatures(ctx, meta.ArtifactID, &set); err != nil {
			o.logger.Warn("loading binary features, skipping artifact",
				logging.Field{Key: "artifact_id", Value: meta.ArtifactID},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		out = append(out, binfeat.FeaturesToList(&set, meta.Path)...)
	}
	return out
}

func (o *Orchestrator) logTemplates(ctx context.Context, buildID, component string) []model.LogTemplate {
	metas, err := o.store.ListArtifacts(ctx, buildID, component, model.ArtifactLog)
	if err != nil {
		o.logger.Warn("listing log artifacts, continuing without log evidence",
			logging.Field{Key: "build_id", Value: buildID},
			logging.Field{Key: "error", Value: err.Error()})
		return nil
	}
	var out []model.LogTemplate
	for _, meta := range metas {
		var templates []model.LogTemplate
		if err := o.store.GetArtifactFeatures(ctx, meta.ArtifactID, &templates); err != nil {
			o.logger.Warn("loading log templates, skipping artifact",
				logging.Field{Key: "artifact_id", Value: meta.ArtifactID},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		out = append(out, templates...)
	}
	return out
}

// --- Store delegates for the API and CLI surfaces ---

func (o *Orchestrator) Queue(ctx context.Context, filter model.QueueFilter) ([]model.QueueItem, error) {
	return o.store.Queue(ctx, filter)
}

func (o *Orchestrator) GetDiff(ctx context.Context, diffID string) (*model.DiffDetail, error) {
	return o.store.GetDiff(ctx, diffID)
}

func (o *Orchestrator) UpdateTriage(ctx context.Context, diffID string, state model.TriageState, notes string) error {
	return o.store.UpdateTriage(ctx, diffID, state, notes)
}

func (o *Orchestrator) GetReports(ctx context.Context, diffID string) (map[string]json.RawMessage, error) {
	return o.store.GetReports(ctx, diffID)
}

func (o *Orchestrator) GetArtifact(ctx context.Context, artifactID string) (*model.ArtifactMeta, error) {
	return o.store.GetArtifact(ctx, artifactID)
}

// ArtifactFeatures returns the raw derived feature blob for an artifact.
func (o *Orchestrator) ArtifactFeatures(ctx context.Context, artifactID string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := o.store.GetArtifactFeatures(ctx, artifactID, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// RenderedHunk returns the character-level rendering of one stored hunk.
func (o *Orchestrator) RenderedHunk(ctx context.Context, diffID, hunkID string) ([]store.RenderedChunk, error) {
	detail, err := o.store.GetDiff(ctx, diffID)
	if err != nil {
		return nil, err
	}
	for i := range detail.EvidenceBundle.DiffHunks {
		h := &detail.EvidenceBundle.DiffHunks[i]
		if h.HunkID == hunkID {
			return store.RenderHunk(h), nil
		}
	}
	return nil, fmt.Errorf("hunk %s not found in diff %s", hunkID, diffID)
}
