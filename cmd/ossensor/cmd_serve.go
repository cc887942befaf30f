package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ossensor/internal/logging"
	"ossensor/internal/server"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAppConfig()
		if err != nil {
			return err
		}
		addr := cfg.ListenAddr
		if serveFlags.addr != "" {
			addr = serveFlags.addr
		}

		logger := logging.NewStdoutLogger("Server")
		s, err := server.NewServer(server.Config{
			ListenAddr: addr,
			AppConfig:  cfg,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		defer s.Close()

		logger.Info("listening", logging.Field{Key: "addr", Value: addr})
		return s.HTTPServer().ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "Listen address (overrides config)")
}
