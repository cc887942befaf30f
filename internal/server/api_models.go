package server

// AnalyzeJobRequest starts an analysis job for a pair of builds.
type AnalyzeJobRequest struct {
	BuildFrom string `json:"build_from"`
	BuildTo   string `json:"build_to"`
	Component string `json:"component"`
	Enrich    bool   `json:"enrich"`
}

// TriageUpdateRequest sets the analyst state and notes on a diff.
type TriageUpdateRequest struct {
	State string `json:"state"`
	Notes string `json:"notes"`
}

// ArtifactResponse pairs artifact metadata with its derived feature blob.
type ArtifactResponse struct {
	Artifact any `json:"artifact"`
	Features any `json:"features,omitempty"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}
