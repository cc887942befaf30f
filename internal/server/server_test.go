package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"ossensor/internal/app"
	"ossensor/internal/logging"
	"ossensor/internal/model"
	"ossensor/internal/server"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	appCfg := app.DefaultConfig()
	appCfg.Store.StoragePath = t.TempDir()

	s, err := server.NewServer(server.Config{
		ListenAddr: ":0",
		AppConfig:  appCfg,
		Logger:     logging.NewStdoutLogger("test"),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func mkTree(t *testing.T, name, content string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "parser.c"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir
}

// analyzedDiff ingests two builds and runs an analysis synchronously,
// returning the diff id.
func analyzedDiff(t *testing.T, s *server.Server) string {
	t.Helper()
	ctx := context.Background()
	orch := s.Orchestrator()

	from := mkTree(t, "from", "int parse_header(void) {\n    return 0;\n}\n")
	to := mkTree(t, "to", "int parse_header(void) {\n    size_t n = count * sizeof(entry_t);\n    return 0;\n}\n")

	if _, err := orch.IngestSource(ctx, "b1", "svc", from); err != nil {
		t.Fatalf("IngestSource b1: %v", err)
	}
	if _, err := orch.IngestSource(ctx, "b2", "svc", to); err != nil {
		t.Fatalf("IngestSource b2: %v", err)
	}
	result, err := orch.AnalyzeBuilds(ctx, "b1", "b2", "svc", false, nil)
	if err != nil {
		t.Fatalf("AnalyzeBuilds: %v", err)
	}
	return result.DiffID
}

// ─── Health and CORS ───────────────────────────────────────────────────

func TestServer_Health(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body)
	}
}

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/queue", "")

	origin := rec.Header().Get("Access-Control-Allow-Origin")
	if origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

func TestServer_OptionsPreflight(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "OPTIONS", "/queue", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", rec.Code)
	}
	methods := rec.Header().Get("Access-Control-Allow-Methods")
	if methods == "" {
		t.Error("expected Allow-Methods header on OPTIONS")
	}
}

// ─── Queue ─────────────────────────────────────────────────────────────

func TestServer_Queue_EmptyList(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/queue", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var items []model.QueueItem
	decodeJSON(t, rec, &items)
	if len(items) != 0 {
		t.Errorf("expected empty queue, got %d items", len(items))
	}
}

func TestServer_Queue_ReturnsAnalyzedDiff(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	diffID := analyzedDiff(t, s)

	rec := doJSON(t, s, "GET", "/queue", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var items []model.QueueItem
	decodeJSON(t, rec, &items)
	if len(items) != 1 {
		t.Fatalf("expected 1 queue item, got %d", len(items))
	}
	if items[0].DiffID != diffID {
		t.Errorf("queue diff id %q, want %q", items[0].DiffID, diffID)
	}
}

func TestServer_Queue_InvalidMinScore(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/queue?min_score=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_Queue_MinScoreFilters(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	analyzedDiff(t, s)

	rec := doJSON(t, s, "GET", "/queue?min_score=1000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []model.QueueItem
	decodeJSON(t, rec, &items)
	if len(items) != 0 {
		t.Errorf("expected min_score to filter out the diff, got %d items", len(items))
	}
}

// ─── Diffs and triage ──────────────────────────────────────────────────

func TestServer_GetDiff(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	diffID := analyzedDiff(t, s)

	rec := doJSON(t, s, "GET", "/diff/"+diffID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var detail model.DiffDetail
	decodeJSON(t, rec, &detail)
	if detail.ID != diffID {
		t.Errorf("diff id %q, want %q", detail.ID, diffID)
	}
	if detail.ScoreResult == nil {
		t.Error("expected score result on analyzed diff")
	}
}

func TestServer_GetDiff_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/diff/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_UpdateTriage(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	diffID := analyzedDiff(t, s)

	rec := doJSON(t, s, "POST", "/diff/"+diffID+"/triage", `{"state":"accepted","notes":"worth a look"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, "GET", "/diff/"+diffID, "")
	var detail model.DiffDetail
	decodeJSON(t, rec, &detail)
	if detail.State != model.TriageAccepted {
		t.Errorf("state %q, want accepted", detail.State)
	}
	if detail.Notes != "worth a look" {
		t.Errorf("notes %q not persisted", detail.Notes)
	}
}

func TestServer_UpdateTriage_InvalidState(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	diffID := analyzedDiff(t, s)

	rec := doJSON(t, s, "POST", "/diff/"+diffID+"/triage", `{"state":"bogus"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_UpdateTriage_UnknownDiff(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/diff/nonexistent/triage", `{"state":"denied"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_RenderedHunk(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	diffID := analyzedDiff(t, s)

	rec := doJSON(t, s, "GET", "/diff/"+diffID, "")
	var detail model.DiffDetail
	decodeJSON(t, rec, &detail)
	if len(detail.EvidenceBundle.DiffHunks) == 0 {
		t.Fatal("expected at least one hunk")
	}
	hunkID := detail.EvidenceBundle.DiffHunks[0].HunkID

	rec = doJSON(t, s, "GET", "/diff/"+diffID+"/hunks/"+hunkID+"/rendered", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var chunks []map[string]string
	decodeJSON(t, rec, &chunks)
	if len(chunks) == 0 {
		t.Error("expected rendered chunks")
	}
}

func TestServer_RenderedHunk_UnknownHunk(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	diffID := analyzedDiff(t, s)

	rec := doJSON(t, s, "GET", "/diff/"+diffID+"/hunks/nope/rendered", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

// ─── Artifacts and reports ─────────────────────────────────────────────

func TestServer_GetArtifact(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	dir := mkTree(t, "src", "int main(void) { return 0; }\n")
	id, err := s.Orchestrator().IngestSource(context.Background(), "b1", "svc", dir)
	if err != nil {
		t.Fatalf("IngestSource: %v", err)
	}

	rec := doJSON(t, s, "GET", "/artifacts/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Artifact model.ArtifactMeta `json:"artifact"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Artifact.ArtifactID != id {
		t.Errorf("artifact id %q, want %q", resp.Artifact.ArtifactID, id)
	}
}

func TestServer_GetArtifact_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/artifacts/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_GetReports(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	diffID := analyzedDiff(t, s)

	rec := doJSON(t, s, "GET", "/reports/"+diffID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var reports map[string]json.RawMessage
	decodeJSON(t, rec, &reports)
	if len(reports) != 5 {
		t.Errorf("expected 5 reports, got %d (%v)", len(reports), reports)
	}
}

// ─── Jobs ──────────────────────────────────────────────────────────────

func TestServer_StartAnalyzeJob(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/jobs/analyze", `{"build_from":"b1","build_to":"b2","component":"svc"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var job struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rec, &job)
	if job.ID == "" {
		t.Fatal("expected job id")
	}

	// Wait for completion, then the job must be visible over REST.
	for range s.Orchestrator().GetJob(job.ID).Events {
	}

	rec = doJSON(t, s, "GET", "/jobs/"+job.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServer_StartAnalyzeJob_MissingFields(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/jobs/analyze", `{"build_from":"b1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_StartAnalyzeJob_InvalidJSON(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/jobs/analyze", `{invalid}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_ListJobs_Empty(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServer_GetJob_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/jobs/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_CancelJob_NoContent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "DELETE", "/jobs/nonexistent", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func TestServer_JobWS_StreamsUntilDone(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/jobs/analyze", `{"build_from":"b1","build_to":"b2","component":"svc"}`)
	var job struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rec, &job)

	srv := httptest.NewServer(s)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/jobs/" + job.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// First message is the job snapshot.
	var snapshot map[string]any
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot["id"] != job.ID {
		t.Errorf("snapshot id %v, want %s", snapshot["id"], job.ID)
	}

	// Drain events until the server closes the stream.
	for {
		var ev map[string]any
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
	}
}

func TestServer_JobWS_UnknownJob(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/ws/jobs/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
