// Package main provides the baseline registry server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quantfolio/baseline-registry/pkg/audit"
	"github.com/quantfolio/baseline-registry/pkg/baseline"
	"github.com/quantfolio/baseline-registry/pkg/identity"
)

var version = "dev"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "baseline-server",
		Short:   "Maker-checker approval server for portfolio baseline versions",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.String("listen", ":8080", "Address to listen on")
	flags.String("db-type", "postgres", "Database type (postgres or sqlite)")
	flags.String("db-dsn", "", "Database connection string")
	flags.String("module-rules", "", "Path to module validation rules YAML")
	flags.String("jwt-public-key", "", "Path to RSA public key for JWT verification")
	flags.String("jwt-issuer", "", "Expected JWT issuer")
	flags.Bool("trusted-proxy-headers", false, "Accept X-Remote-* identity headers alongside JWT verification")
	flags.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	flags.Int("audit-retention-days", 90, "Days to retain audit events (0 disables pruning)")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("BASELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

func run(v *viper.Viper) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	listenAddr := v.GetString("listen")

	logger.Info("starting baseline server",
		zap.String("listen", listenAddr),
		zap.String("dbType", v.GetString("db-type")),
		zap.String("version", version),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	gormDB, err := setupDatabase(v.GetString("db-type"), v.GetString("db-dsn"))
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	store := baseline.NewStore(gormDB)
	if err := store.AutoMigrate(); err != nil {
		return err
	}
	auditStore := audit.NewStore(gormDB)
	if err := auditStore.AutoMigrate(); err != nil {
		return err
	}

	validator, err := baseline.LoadModuleRules(v.GetString("module-rules"))
	if err != nil {
		return fmt.Errorf("load module rules: %w", err)
	}

	svc := baseline.NewService(store, validator, auditStore, logger)

	identityMW, err := identity.Middleware(identity.Config{
		PublicKeyPath:       v.GetString("jwt-public-key"),
		Issuer:              v.GetString("jwt-issuer"),
		TrustedProxyHeaders: v.GetBool("trusted-proxy-headers"),
		Logger:              logger,
	})
	if err != nil {
		return fmt.Errorf("configure identity middleware: %w", err)
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   v.GetStringSlice("cors-origins"),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", identity.UserHeader, identity.CompanyHeader, identity.RoleHeader},
		AllowCredentials: true,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Group(func(r chi.Router) {
		r.Use(identityMW)
		r.Mount("/api/baseline/v1alpha1", baseline.NewRouter(svc))
		r.Mount("/api/audit/v1alpha1", audit.NewRouter(auditStore))
	})

	go audit.RunRetention(ctx, auditStore, audit.RetentionConfig{
		Days: v.GetInt("audit-retention-days"),
	}, logger)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", listenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// setupDatabase opens a gorm connection for the configured backend.
// TranslateError is enabled so unique-constraint violations surface as
// gorm.ErrDuplicatedKey, which the store relies on for conflict detection.
func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}
	switch dbType {
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("db-dsn is required for postgres")
		}
		return gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		if dsn == "" {
			dsn = "baseline.db"
		}
		return gorm.Open(sqlite.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported db type %q (expected postgres or sqlite)", dbType)
	}
}
