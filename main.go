package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/auth"
	"equipborrow-backend/internal/platform/config"
	"equipborrow-backend/internal/platform/db"
	"equipborrow-backend/internal/platform/ids"
	"equipborrow-backend/internal/platform/logging"
	"equipborrow-backend/internal/platform/server"
	"equipborrow-backend/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "equipborrow",
		Short:        "Equipment borrowing backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "path to config.yaml")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), cfgPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create missing tables",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), cfgPath)
			},
		},
		newCreateAdminCmd(&cfgPath),
	)
	return root
}

func newCreateAdminCmd(cfgPath *string) *cobra.Command {
	var email, password, first, last string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Provision an active admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return createAdmin(cmd.Context(), *cfgPath, email, password, first, last)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&first, "first", "", "first name")
	cmd.Flags().StringVar(&last, "last", "", "last name")
	for _, f := range []string{"email", "password", "first", "last"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func bootstrap(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func serve(ctx context.Context, cfgPath string) error {
	cfg, log, err := bootstrap(cfgPath)
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Info("starting", zap.String("mode", cfg.Mode), zap.String("version", cfg.Version))

	conn, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info("connected to database", zap.String("db", cfg.DB.DBName))

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}

	router := server.NewRouter(server.Deps{
		Config: cfg,
		DB:     conn,
		Redis:  rdb,
		Log:    log,
		Clock:  ids.RealClock{},
		IDs:    ids.NewULIDGen(),
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := cfg.Server.TLSCert != "" && cfg.Server.TLSKey != ""
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.Bool("tls", useTLS))
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrate(ctx context.Context, cfgPath string) error {
	cfg, log, err := bootstrap(cfgPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	conn, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()

	n, err := db.Migrate(ctx, conn)
	if err != nil {
		return err
	}
	log.Info("schema applied", zap.Int("statements", n), zap.String("db", cfg.DB.DBName))
	return nil
}

func createAdmin(ctx context.Context, cfgPath, email, password, first, last string) error {
	cfg, log, err := bootstrap(cfgPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	conn, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()

	// No session is issued here, so an in-memory store is enough.
	svc := users.NewService(conn, auth.NewMemorySessionStore(nil), ids.RealClock{}, ids.NewULIDGen(), log)

	p, err := svc.CreateAdmin(ctx, email, password, first, last)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "created admin %s (%s)\n", p.Email, p.ID)
	return nil
}
