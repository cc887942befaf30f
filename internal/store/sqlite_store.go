// Package store persists builds, artifacts, diffs and reports in SQLite.
// Artifact rows hold derived feature blobs, never raw content; the retention
// mode only decides whether a content path may be recorded alongside.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"ossensor/internal/interfaces"
	"ossensor/internal/logging"
	"ossensor/internal/model"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrDiffNotFound     = errors.New("diff not found")
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore implements interfaces.Store on a single database file.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
	config Config
}

var _ interfaces.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database under the
// configured storage path and applies the schema.
func NewSQLiteStore(logger logging.Logger, config *Config) (*SQLiteStore, error) {
	if logger == nil {
		return nil, errors.New("store: nil logger provided")
	}
	cfg := DefaultConfig()
	if config != nil {
		if config.StoragePath != "" {
			cfg.StoragePath = config.StoragePath
		}
		if config.Mode != "" {
			cfg.Mode = config.Mode
		}
	}

	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	dbPath := filepath.Join(cfg.StoragePath, "ossensor.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("store initialized",
		logging.Field{Key: "path", Value: dbPath},
		logging.Field{Key: "mode", Value: string(cfg.Mode)})

	return &SQLiteStore{
		db:     db,
		logger: logger,
		config: cfg,
	}, nil
}

// applySchema sets pragmas and creates the tables.
func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// EnsureBuild records the build id if it is not already known.
func (s *SQLiteStore) EnsureBuild(ctx context.Context, buildID string) error {
	if buildID == "" {
		return errors.New("build id is empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds (id, created_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, buildID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("ensure build: %w", err)
	}
	return nil
}

// StoreArtifact persists artifact metadata plus its derived feature blob and
// returns the generated artifact id.
func (s *SQLiteStore) StoreArtifact(ctx context.Context, buildID, component string, kind model.ArtifactKind, path string, features any) (string, error) {
	if err := s.EnsureBuild(ctx, buildID); err != nil {
		return "", err
	}
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("marshal features: %w", err)
	}

	// Content paths are only retained in full-source mode; the default mode
	// keeps the ingest location out of the database entirely.
	var contentPath sql.NullString
	if s.config.Mode == model.StorageFullSource {
		contentPath = sql.NullString{String: path, Valid: true}
	}

	artifactID := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, build_id, component, kind, path, ingested_at, features_json, content_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, artifactID, buildID, component, string(kind), path, time.Now().Unix(), string(featuresJSON), contentPath)
	if err != nil {
		return "", fmt.Errorf("insert artifact: %w", err)
	}

	s.logger.Debug("artifact stored",
		logging.Field{Key: "artifact_id", Value: artifactID},
		logging.Field{Key: "build_id", Value: buildID},
		logging.Field{Key: "kind", Value: string(kind)})
	return artifactID, nil
}

// GetArtifact returns metadata for one artifact.
func (s *SQLiteStore) GetArtifact(ctx context.Context, artifactID string) (*model.ArtifactMeta, error) {
	var meta model.ArtifactMeta
	var kind string
	var ingestedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, build_id, component, kind, path, ingested_at
		FROM artifacts WHERE id = ?
	`, artifactID).Scan(&meta.ArtifactID, &meta.BuildID, &meta.Component, &kind, &meta.Path, &ingestedAt)
	if err == sql.ErrNoRows {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query artifact: %w", err)
	}
	meta.Kind = model.ArtifactKind(kind)
	meta.IngestedAt = time.Unix(ingestedAt, 0).UTC()
	meta.StorageMode = s.config.Mode
	return &meta, nil
}

// GetArtifactFeatures decodes the stored feature blob into out.
func (s *SQLiteStore) GetArtifactFeatures(ctx context.Context, artifactID string, out any) error {
	var featuresJSON sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT features_json FROM artifacts WHERE id = ?
	`, artifactID).Scan(&featuresJSON)
	if err == sql.ErrNoRows {
		return ErrArtifactNotFound
	}
	if err != nil {
		return fmt.Errorf("query artifact features: %w", err)
	}
	if !featuresJSON.Valid || featuresJSON.String == "" {
		return ErrArtifactNotFound
	}
	if err := json.Unmarshal([]byte(featuresJSON.String), out); err != nil {
		return fmt.Errorf("decode features: %w", err)
	}
	return nil
}

// ListArtifacts filters by build, component and kind; empty values match all.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, buildID, component string, kind model.ArtifactKind) ([]model.ArtifactMeta, error) {
	query := `SELECT id, build_id, component, kind, path, ingested_at FROM artifacts WHERE 1=1`
	var args []any
	if buildID != "" {
		query += ` AND build_id = ?`
		args = append(args, buildID)
	}
	if component != "" {
		query += ` AND component = ?`
		args = append(args, component)
	}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY ingested_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []model.ArtifactMeta
	for rows.Next() {
		var meta model.ArtifactMeta
		var k string
		var ingestedAt int64
		if err := rows.Scan(&meta.ArtifactID, &meta.BuildID, &meta.Component, &k, &meta.Path, &ingestedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		meta.Kind = model.ArtifactKind(k)
		meta.IngestedAt = time.Unix(ingestedAt, 0).UTC()
		meta.StorageMode = s.config.Mode
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return out, nil
}

// CreateDiff stores a new diff record with its evidence bundle and returns
// the opaque diff id.
func (s *SQLiteStore) CreateDiff(ctx context.Context, buildFrom, buildTo, component string, bundle *model.EvidenceBundle) (string, error) {
	bundleJSON, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}
	diffID := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO diffs (id, build_from, build_to, component, evidence_bundle_json, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, diffID, buildFrom, buildTo, component, string(bundleJSON), string(model.TriagePending), time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("insert diff: %w", err)
	}
	s.logger.Debug("diff created",
		logging.Field{Key: "diff_id", Value: diffID},
		logging.Field{Key: "component", Value: component})
	return diffID, nil
}

// GetDiff returns the full stored record for one diff.
func (s *SQLiteStore) GetDiff(ctx context.Context, diffID string) (*model.DiffDetail, error) {
	var d model.DiffDetail
	var bundleJSON string
	var scoreJSON sql.NullString
	var state string
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, build_from, build_to, component, evidence_bundle_json, score_result_json, state, notes, created_at
		FROM diffs WHERE id = ?
	`, diffID).Scan(&d.ID, &d.BuildFrom, &d.BuildTo, &d.Component, &bundleJSON, &scoreJSON, &state, &d.Notes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrDiffNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query diff: %w", err)
	}
	if err := json.Unmarshal([]byte(bundleJSON), &d.EvidenceBundle); err != nil {
		return nil, fmt.Errorf("decode evidence bundle: %w", err)
	}
	if scoreJSON.Valid && scoreJSON.String != "" {
		var sr model.ScoreResult
		if err := json.Unmarshal([]byte(scoreJSON.String), &sr); err != nil {
			return nil, fmt.Errorf("decode score result: %w", err)
		}
		d.ScoreResult = &sr
	}
	d.State = model.TriageState(state)
	d.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &d, nil
}

// SetDiffScore attaches a score result to an existing diff. The total is
// denormalized into its own column so the queue can rank in SQL.
func (s *SQLiteStore) SetDiffScore(ctx context.Context, diffID string, score *model.ScoreResult) error {
	scoreJSON, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("marshal score result: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE diffs SET score_result_json = ?, total_score = ? WHERE id = ?
	`, string(scoreJSON), score.TotalScore, diffID)
	if err != nil {
		return fmt.Errorf("update diff score: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrDiffNotFound
	}
	return nil
}

// UpdateTriage sets the analyst triage state and notes for a diff.
func (s *SQLiteStore) UpdateTriage(ctx context.Context, diffID string, state model.TriageState, notes string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE diffs SET state = ?, notes = ? WHERE id = ?
	`, string(state), notes, diffID)
	if err != nil {
		return fmt.Errorf("update triage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrDiffNotFound
	}
	return nil
}

// Queue returns the ranked worklist: highest score first, unscored diffs
// rank as zero, ties broken by diff id for a stable order.
func (s *SQLiteStore) Queue(ctx context.Context, filter model.QueueFilter) ([]model.QueueItem, error) {
	query := `
		SELECT id, build_from, build_to, component, COALESCE(total_score, 0), state, notes, created_at
		FROM diffs WHERE 1=1`
	var args []any
	if filter.Component != "" {
		query += ` AND component = ?`
		args = append(args, filter.Component)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if filter.BuildFrom != "" {
		query += ` AND build_from = ?`
		args = append(args, filter.BuildFrom)
	}
	if filter.BuildTo != "" {
		query += ` AND build_to = ?`
		args = append(args, filter.BuildTo)
	}
	if filter.HasMinScore {
		query += ` AND COALESCE(total_score, 0) >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY COALESCE(total_score, 0) DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var out []model.QueueItem
	for rows.Next() {
		var item model.QueueItem
		var state string
		var createdAt int64
		if err := rows.Scan(&item.ID, &item.BuildFrom, &item.BuildTo, &item.Component, &item.Score, &state, &item.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		item.DiffID = item.ID
		item.State = model.TriageState(state)
		item.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue: %w", err)
	}
	return out, nil
}

// StoreReport persists one report payload, replacing any previous payload of
// the same type for the diff.
func (s *SQLiteStore) StoreReport(ctx context.Context, diffID, reportType string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal report payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (diff_id, report_type, payload_json, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(diff_id, report_type) DO UPDATE SET payload_json = excluded.payload_json, created_at = excluded.created_at
	`, diffID, reportType, string(payloadJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReports returns all stored report payloads for a diff keyed by type.
func (s *SQLiteStore) GetReports(ctx context.Context, diffID string) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_type, payload_json FROM reports WHERE diff_id = ? ORDER BY report_type
	`, diffID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var reportType, payloadJSON string
		if err := rows.Scan(&reportType, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out[reportType] = json.RawMessage(payloadJSON)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing store")
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
