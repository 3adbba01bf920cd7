package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/najdeno/internal/api"
	"github.com/erazemk/najdeno/internal/audit"
	"github.com/erazemk/najdeno/internal/config"
	"github.com/erazemk/najdeno/internal/jobs"
	"github.com/erazemk/najdeno/internal/model"
)

var flags struct {
	envFile    string
	dbPath     string
	addr       string
	adminEmail string
	logPath    string
	backend    string
	media      string
	verbose    bool
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "najdeno",
	Short:         "Lost and found tracking server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), func(ctx context.Context, cfg *config.Config, b *backend) error {
			return serve(ctx, cfg, b)
		})
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and the first administrator",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), func(ctx context.Context, cfg *config.Config, b *backend) error {
			return ensureAdmin(ctx, cfg, b)
		})
	},
}

var exportFlags struct {
	format string
	out    string
	query  string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the action log as CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		var write func(io.Writer, []model.ActionLogEntry) error
		switch exportFlags.format {
		case "csv":
			write = audit.WriteCSV
		case "xlsx":
			write = audit.WriteXLSX
		default:
			return fmt.Errorf("unknown format %q (want csv or xlsx)", exportFlags.format)
		}

		return run(cmd.Context(), func(ctx context.Context, cfg *config.Config, b *backend) error {
			entries, err := b.svc.ActionLogs(ctx, exportFlags.query)
			if err != nil {
				return err
			}

			out := io.Writer(os.Stdout)
			if exportFlags.out != "" && exportFlags.out != "-" {
				f, err := os.Create(exportFlags.out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", exportFlags.out, err)
				}
				defer f.Close()
				out = f
			}
			if err := write(out, entries); err != nil {
				return fmt.Errorf("exporting action logs: %w", err)
			}
			slog.Info("action logs exported", "entries", len(entries), "format", exportFlags.format, "out", exportFlags.out)
			return nil
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.envFile, "env", "", "env file to load (default: .env if present)")
	pf.StringVarP(&flags.dbPath, "db", "d", "", "SQLite database path (default: najdeno.sqlite3)")
	pf.StringVarP(&flags.addr, "addr", "a", "", "listen address (default: :8080)")
	pf.StringVarP(&flags.adminEmail, "admin-email", "e", "", "administrator email on first run")
	pf.StringVarP(&flags.logPath, "log", "l", "", "log file path (default: stdout/stderr only)")
	pf.StringVar(&flags.backend, "backend", "", "record backend: sqlite or firebase")
	pf.StringVar(&flags.media, "media", "", "photo store: sqlite or minio")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log debug messages")

	exportCmd.Flags().StringVarP(&exportFlags.format, "format", "f", "csv", "csv or xlsx")
	exportCmd.Flags().StringVarP(&exportFlags.out, "out", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVarP(&exportFlags.query, "query", "q", "", "only export entries matching this search")

	rootCmd.AddCommand(serveCmd, initCmd, exportCmd)
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig() (*config.Config, error) {
	var files []string
	if flags.envFile != "" {
		files = append(files, flags.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.DBPath, flags.dbPath)
	override(&cfg.Addr, flags.addr)
	override(&cfg.AdminEmail, flags.adminEmail)
	override(&cfg.LogPath, flags.logPath)
	override(&cfg.Backend, flags.backend)
	override(&cfg.Media.Store, flags.media)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run loads the configuration, sets up logging and the backend, and calls fn.
func run(ctx context.Context, fn func(context.Context, *config.Config, *backend) error) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}

	closeLog, err := setupLogger(cfg.LogPath, flags.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	defer closeLog()

	if ctx == nil {
		ctx = context.Background()
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up backend", "error", err)
		return err
	}
	defer b.Close()

	if err := fn(ctx, cfg, b); err != nil {
		slog.Error("command failed", "error", err)
		return err
	}
	return nil
}

// ensureAdmin makes sure an active administrator exists and prints the
// one-time password when one was created.
func ensureAdmin(ctx context.Context, cfg *config.Config, b *backend) error {
	password, err := b.svc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminName)
	if err != nil {
		return fmt.Errorf("ensuring administrator: %w", err)
	}
	if password != "" {
		printAdminPassword(cfg.AdminEmail, password)
	}
	return nil
}

func printAdminPassword(email, password string) {
	fmt.Println("Administrator account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("You will be asked to change it after logging in.")
	fmt.Println()
}

func serve(ctx context.Context, cfg *config.Config, b *backend) error {
	if err := ensureAdmin(ctx, cfg, b); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b.listen(ctx)

	scheduler := jobs.NewScheduler(b.db, nil)
	if err := scheduler.AddPurge(cfg.PurgeSchedule); err != nil {
		return err
	}
	scheduler.Start()

	router := api.NewRouter(api.Config{
		Service:  b.svc,
		Identity: b.identity,
		Hub:      b.hub,
		Media:    b.media,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		scheduler.Stop(shutdownCtx)
	}()

	slog.Info("server started", "addr", cfg.Addr, "public_url", cfg.PublicURL)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	<-stopped

	slog.Info("server stopped, closing database")
	return nil
}
