package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/stockaudit/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API. Sessions live under /v1/{tenant}/sessions:

  POST   /sessions                     create a session
  POST   /sessions/{id}/analyze        compare two reports (multipart or JSON)
  POST   /sessions/{id}/actions        selection, answers, notes, views
  GET    /sessions/{id}/exports/{kind} audit.pdf, field-sheet.pdf, final-report.pdf, *.png
  GET    /sessions/{id}/share          share text and link
  GET    /analyses                     stored analysis history`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	logger, err := server.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx, cfg, logger)
}
