package server

import (
	"ossensor/internal/app"
	"ossensor/internal/logging"
)

// Config wires the HTTP server. AppConfig nil means defaults.
type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":8080".
	ListenAddr string

	// AppConfig configures the orchestrator the server runs.
	AppConfig *app.Config

	// Logger is optional; a stdout logger is used when nil.
	Logger logging.Logger
}
