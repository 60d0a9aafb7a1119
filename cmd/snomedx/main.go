package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/snomedx/snomedx/internal/config"
	"github.com/snomedx/snomedx/internal/domain/resolution"
	"github.com/snomedx/snomedx/internal/platform/db"
	"github.com/snomedx/snomedx/internal/platform/middleware"
	"github.com/snomedx/snomedx/internal/platform/workbook"
)

// LogFile is written next to the workbooks of every extract run.
const LogFile = "log.txt"

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "snomedx",
		Short:        "Resolve EMIS search exports to SNOMED CT concept lists",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", config.DefaultFile, "Path to the INI settings file")

	root.AddCommand(extractCmd())
	root.AddCommand(consolidateCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(configCmd())
	return root
}

// loadConfig reads settings for cmd, binding the command's own flags.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// newLogger builds the process logger. Console output is used in
// development; extra writers receive the JSON stream as well.
func newLogger(cfg *config.Config, out io.Writer, extra ...io.Writer) zerolog.Logger {
	var primary io.Writer = out
	if cfg.IsDev() {
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	w := primary
	if len(extra) > 0 {
		w = zerolog.MultiLevelWriter(append([]io.Writer{primary}, extra...)...)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("run_id", uuid.NewString()).Logger()
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("database", "", "Terminology store (sct) connection string")
	cmd.Flags().String("closure-db", "", "Transitive closure store (scttc) connection string")
	cmd.Flags().String("history-db", "", "History store (scthist) connection string")
	cmd.Flags().String("driver", "", "Store driver: pgx or postgres")
	cmd.Flags().String("log-level", "", "Log level")
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Resolve every XML export in the document directory and write workbooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			save, _ := cmd.Flags().GetBool("save")
			return runExtract(cmd, save)
		},
	}
	cmd.Flags().String("xml-dir", "", "Directory holding the XML exports")
	cmd.Flags().String("output-dir", "", "Directory the workbooks are written to")
	cmd.Flags().Bool("save", false, "Store the paths used in the settings file")
	addStoreFlags(cmd)
	return cmd
}

func runExtract(cmd *cobra.Command, save bool) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.OutputDir, LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := newLogger(cfg, os.Stdout, logFile)

	if save {
		if err := config.Save(path, cfg); err != nil {
			logger.Warn().Err(err).Str("config", path).Msg("failed to save settings")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to stores")
		return err
	}
	defer stores.Close()
	logger.Info().Str("driver", cfg.StoreDriver).Msg("connected to stores")

	svc := resolution.NewService(stores.Lookups, logger)
	runner := resolution.NewRunner(svc, workbook.NewWriter(cfg.OutputDir, logger), logger)
	sum, err := runner.Run(ctx, cfg.XMLDirectory)
	if err != nil {
		logger.Error().Err(err).Msg("run stopped")
		return err
	}
	if len(sum.Failed) > 0 {
		return fmt.Errorf("%d file(s) failed", len(sum.Failed))
	}
	return nil
}

func consolidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Merge the concept columns of every workbook into one workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			source, _ := cmd.Flags().GetString("source-dir")
			if source == "" {
				source = cfg.OutputDir
			}
			if source == "" || cfg.OutputDir == "" {
				return fmt.Errorf("%w: output_dir", config.ErrMissingPath)
			}

			logger := newLogger(cfg, os.Stdout)
			out, err := workbook.Consolidate(source, cfg.OutputDir, logger)
			if err != nil {
				return err
			}
			logger.Info().Str("workbook", out).Msg("consolidated workbook saved")
			return nil
		},
	}
	cmd.Flags().String("source-dir", "", "Directory holding the workbooks (defaults to the output dir)")
	cmd.Flags().String("output-dir", "", "Directory the consolidated workbook is written to")
	cmd.Flags().String("log-level", "", "Log level")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the resolution API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd)
		},
	}
	addStoreFlags(cmd)
	cmd.Flags().String("port", "", "Listen port")
	cmd.Flags().String("body-limit", "", "Maximum request body size, e.g. 32M")
	cmd.Flags().Duration("request-timeout", 0, "Per-request timeout")
	return cmd
}

// newServer wires middleware and routes around svc.
func newServer(cfg *config.Config, svc *resolution.Service, health []db.Store, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(health))

	apiV1 := e.Group("/api/v1")
	resolution.NewHandler(svc).RegisterRoutes(apiV1)
	return e
}

func runServer(cmd *cobra.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	if err := cfg.ValidateStores(); err != nil {
		logger.Fatal().Err(err).Msg("invalid store settings")
	}

	ctx := context.Background()
	stores, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to stores")
	}
	defer stores.Close()
	logger.Info().Str("driver", cfg.StoreDriver).Msg("connected to stores")

	svc := resolution.NewService(stores.Lookups, logger)
	e := newServer(cfg, svc, stores.Health, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the store tables",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := migrationPool(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	addMigrateFlags(upCmd)
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := migrationPool(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	addMigrateFlags(statusCmd)
	cmd.AddCommand(statusCmd)

	return cmd
}

func addMigrateFlags(cmd *cobra.Command) {
	cmd.Flags().String("dsn", "", "Target database (defaults to database_path)")
	cmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.Flags().String("dir", "./migrations", "Path to migrations directory")
}

// migrationPool connects to --dsn, falling back to the terminology store.
func migrationPool(ctx context.Context, cmd *cobra.Command) (*pgxpool.Pool, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dsn, _ := cmd.Flags().GetString("dsn")
	if dsn == "" {
		dsn = cfg.DatabasePath
	}
	if dsn == "" {
		return nil, fmt.Errorf("%w: --dsn or database_path", config.ErrMissingPath)
	}
	return db.NewPool(ctx, dsn, cfg.DBMaxConns, cfg.DBMinConns)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or reset the settings file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), path, cfg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Blank the stored paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if err := config.Clear(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared paths in %s\n", path)
			return nil
		},
	})
	return cmd
}

func printSettings(w io.Writer, path string, cfg *config.Config) {
	fmt.Fprintf(w, "# %s\n", path)
	paths := cfg.Paths()
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-28s %s\n", k, paths[k])
	}
	fmt.Fprintf(w, "%-28s %s\n", "store_driver", cfg.StoreDriver)
	fmt.Fprintf(w, "%-28s %s\n", "env", cfg.Env)
}
