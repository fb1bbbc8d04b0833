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

	"hostbot/internal/config"
	"hostbot/internal/dbtask"
	"hostbot/internal/host"
	"hostbot/internal/logging"
	"hostbot/internal/store"
	httptransport "hostbot/internal/transport/http"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

const shutdownTimeout = 15 * time.Second

type options struct {
	envFile         string
	migrateOnly     bool
	importCountries string
	logRoutes       bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("hostbot", flag.ContinueOnError)
	fs.StringVar(&o.envFile, "env-file", "", "load environment variables from this file first")
	fs.BoolVar(&o.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	fs.StringVar(&o.importCountries, "import-countries", "", "load an ip-to-country CSV into the local database before serving")
	fs.BoolVar(&o.logRoutes, "log-routes", false, "print the HTTP routes on start")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func loadEnv(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := loadEnv(opts.envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load env file: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Log)

	if cfg.DB.MigrateOnStart || opts.migrateOnly {
		if err := store.Migrate(cfg.DB.PostgresDSN); err != nil {
			log.Fatal().Err(err).Msg("migrate failed")
		}
		if opts.migrateOnly {
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, opts); err != nil {
		log.Fatal().Err(err).Msg("hostbot stopped")
	}
}

func run(ctx context.Context, cfg config.AppConfig, opts options) error {
	st, err := store.New(cfg.DB.PostgresDSN)
	if err != nil {
		return fmt.Errorf("store init: %w", err)
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}

	remotePool, err := dbtask.NewPool(ctx, store.Dialer(cfg.DB.PostgresDSN), cfg.DB.IdleSoftCap)
	if err != nil {
		return fmt.Errorf("remote pool: %w", err)
	}
	dispOpts := dbtask.DispatcherOptions{
		MaxWorkers:      cfg.DB.MaxWorkers,
		SpawnRetryDelay: cfg.DB.SpawnRetryDelay,
		DialTimeout:     cfg.DB.DialTimeout,
	}
	remote := dbtask.NewDispatcher(remotePool, dispOpts)

	var local *dbtask.Dispatcher
	var localPool *dbtask.Pool
	if cfg.DB.LocalDBPath != "" {
		ldb, err := store.OpenLocal(cfg.DB.LocalDBPath)
		if err != nil {
			return fmt.Errorf("open local db: %w", err)
		}
		defer ldb.Close()
		if opts.importCountries != "" {
			if err := importCountries(ctx, ldb, opts.importCountries); err != nil {
				return err
			}
		}
		localPool, err = dbtask.NewPool(ctx, ldb.Dialer(), 2)
		if err != nil {
			return fmt.Errorf("local pool: %w", err)
		}
		local = dbtask.NewDispatcher(localPool, dispOpts)
	}

	db := store.NewDB(remote, local, store.DBOptions{
		BotID:      cfg.DB.BotID,
		RatingBase: cfg.Game.RatingBase,
		EloK:       cfg.Game.EloK,
	})

	admins := host.NewAdmins(cfg.Server.Admins, cfg.Server.RootAdmins)
	if err := admins.Load(ctx, st.Pool, cfg.Server.Realm); err != nil {
		log.Warn().Err(err).Msg("initial admin load failed")
	}
	admins.StartRefresh(ctx, st.Pool, cfg.Server.Realm, cfg.Server.AdminRefresh)

	games := host.NewManager(host.Options{
		Realm:          cfg.Server.Realm,
		Game:           cfg.Game,
		AutoBan:        cfg.AutoBan,
		TickInterval:   cfg.Server.TickInterval,
		OrphanInterval: cfg.Server.OrphanInterval,
		EventBuffer:    cfg.Server.EventBuffer,
	}, db, admins)
	games.Start(ctx)

	r := httptransport.NewRouter(httptransport.RouterDeps{
		Games:       games,
		Records:     db,
		Health:      st,
		Realm:       cfg.Server.Realm,
		AdminAPIKey: cfg.Server.AdminAPIKey,
	})
	if opts.logRoutes {
		httptransport.LogRoutes(r)
	}

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("realm", cfg.Server.Realm).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	games.Shutdown(shutdownCtx)
	remotePool.Close(shutdownCtx)
	if localPool != nil {
		localPool.Close(shutdownCtx)
	}
	log.Info().Str("db", db.Status()).Msg("stopped")
	return serveErr
}

func importCountries(ctx context.Context, ldb *store.LocalDB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open country csv: %w", err)
	}
	defer f.Close()
	n, err := ldb.ImportCountries(ctx, f)
	if err != nil {
		return fmt.Errorf("import countries: %w", err)
	}
	log.Info().Int("ranges", n).Str("path", path).Msg("imported ip-to-country ranges")
	return nil
}
