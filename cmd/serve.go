package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/forumrelay/internal/config"
	"github.com/CosmoTheDev/forumrelay/internal/gateway"
	"github.com/CosmoTheDev/forumrelay/internal/notify"
)

var (
	servePort   int
	serveLogDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the forum webhook service",
	Long: `Starts the webhook service. Configure these URLs as Slack webhooks in the
forum; the token segment is checked on every request:

  POST /webhook/<token>/forum/user     user post approved
  POST /webhook/<token>/forum/admin    post approved by a moderator
  POST /webhook/<token>/forum/reply    new reply
  POST /webhook/<token>/forum          any of the above, detected from the title

Other endpoints:
  GET  /health                         liveness check
  GET  /api/status                     relay counters
  GET  /events                         SSE stream of relay events
  GET  /metrics                        Prometheus metrics

In development mode the diagnostics under /test/ and /security/info are
also served. They reveal the webhook token.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port to listen on (default 3000, overrides config)")
	serveCmd.Flags().StringVar(&serveLogDir, "log-dir", "",
		"directory to copy service logs into (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down forumrelay gracefully...")
		cancel()
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveLogDir != "" {
		cfg.Server.LogDir = serveLogDir
	}

	logFilePath, closeLog, err := setupServeLogger(cfg.Server.LogDir)
	if err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}
	defer closeLog()

	generated, err := config.EnsureWebhookToken(cfg)
	if err != nil {
		return err
	}
	if generated {
		slog.Warn("no webhook token configured, generated one for this run; set WEBHOOK_TOKEN to keep it stable",
			"token", cfg.Security.WebhookToken)
	}

	d := notify.NewDispatcher(cfg.NapCat)
	gw := gateway.New(cfg, d)
	ep := gw.SecureEndpoints()

	fmt.Println(headerStyle.Render("  forumrelay starting"))
	fmt.Printf("  Listen      : http://%s\n", gw.Addr())
	fmt.Printf("  Environment : %s\n", cfg.Server.Environment)
	fmt.Printf("  User posts  : %s\n", ep.UserPost)
	fmt.Printf("  Admin posts : %s\n", ep.AdminPost)
	fmt.Printf("  Replies     : %s\n", ep.UserReply)
	fmt.Printf("  Generic     : %s\n", ep.Generic)
	if logFilePath != "" {
		fmt.Printf("  Logs        : %s\n", logFilePath)
	}
	fmt.Println()

	if missing := cfg.Missing(); len(missing) > 0 {
		fmt.Println(warnStyle.Render("  NapCat is not configured; every relay will fail until these are set:"))
		fmt.Println(warnStyle.Render("    " + strings.Join(missing, ", ")))
		fmt.Println(dimStyle.Render("  Run 'forumrelay onboard' or export them in .env.\n"))
	} else {
		fmt.Println(successStyle.Render("  NapCat configured for group " + cfg.NapCat.GroupID + "\n"))
	}
	fmt.Println("Press Ctrl+C to stop gracefully.")
	fmt.Println()

	return gw.Start(ctx)
}

// setupServeLogger installs the default slog handler. Output always goes to
// stdout; when logDir is set it is also appended to a per-run file and to
// forumrelay.log.
func setupServeLogger(logDir string) (string, func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: verbose}

	if logDir == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
		slog.SetLogLoggerLevel(level)
		return "", func() {}, nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating log dir %s: %w", logDir, err)
	}

	ts := time.Now().UTC().Format("20060102-150405")
	runLogPath := filepath.Join(logDir, fmt.Sprintf("forumrelay-%s.log", ts))
	runFile, err := os.OpenFile(runLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("opening run log file: %w", err)
	}

	latestPath := filepath.Join(logDir, "forumrelay.log")
	latestFile, err := os.OpenFile(latestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = runFile.Close()
		return "", nil, fmt.Errorf("opening latest log file: %w", err)
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, runFile, latestFile), opts)
	slog.SetDefault(slog.New(handler))
	slog.SetLogLoggerLevel(level)

	cleanup := func() {
		_ = latestFile.Close()
		_ = runFile.Close()
	}
	return runLogPath, cleanup, nil
}
