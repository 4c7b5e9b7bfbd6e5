package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chetan-code/supatodo/internal/auth"
	"github.com/chetan-code/supatodo/internal/config"
	"github.com/chetan-code/supatodo/internal/handler"
	"github.com/chetan-code/supatodo/internal/repository"
	"github.com/chetan-code/supatodo/internal/supabase"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func loadEnvVar() {
	//.env is optional, real environment wins
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("environment_var_load_failure", "error", err)
	}
}

func setupSlog(level slog.Level) {
	//Json handler that writes to standard out
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: true, //adds file name and line number
	})
	slog.SetDefault(slog.New(handler))
}

func initDB(ctx context.Context, dburl string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dburl)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	//check if connection is alive
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	slog.Info("database_intialisation_success")
	return db, nil
}

func newProvider(cfg *config.ServerConfig) (*supabase.Client, error) {
	return supabase.New(cfg.Supabase.URL, cfg.Supabase.Key, &http.Client{Timeout: 15 * time.Second})
}

func newVerifier(cfg *config.ServerConfig) (auth.Verifier, error) {
	switch cfg.Auth.Verifier {
	case config.VerifierJWT:
		return auth.NewJWTVerifier([]byte(cfg.Supabase.JWTSecret), cfg.Auth.Audience)
	default:
		provider, err := newProvider(cfg)
		if err != nil {
			return nil, err
		}
		return supabase.NewAuth(provider), nil
	}
}

// newStore returns the configured store and a func releasing it.
func newStore(ctx context.Context, cfg *config.ServerConfig) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := initDB(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo, err := repository.NewTodoRepo(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, func() { db.Close() }, nil
	case config.DriverSQLite:
		store, err := repository.OpenSQLite(cfg.Store.SQLitePath, slog.Default())
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		provider, err := newProvider(cfg)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSupabaseStore(provider), func() {}, nil
	}
}

func loggerMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		//logging completion of a request
		slog.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"ip", r.RemoteAddr,
			"duration", time.Since(start).String(),
		)
	})
}

func corsMW(origin string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
}

func routing(cfg *config.ServerConfig, h *handler.TodoHandler, v auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(loggerMW)
	r.Use(corsMW(cfg.CORSOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	//everything under /api needs a verified bearer token
	r.Mount("/api", h.Routes(v))
	return r
}

func startServer(ctx context.Context, addr string, mux http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server_start_success", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("server_shutdown_started")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func run() error {
	configPath := pflag.String("config", "", "path to a YAML config file (default $TODO_CONFIG)")
	addr := pflag.String("addr", "", "listen address, overrides PORT")
	pflag.Parse()

	loadEnvVar()

	cfg, err := config.LoadServer(config.FilePath(*configPath))
	if err != nil {
		return err
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	setupSlog(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := newVerifier(cfg)
	if err != nil {
		return fmt.Errorf("building verifier: %w", err)
	}
	store, release, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building store: %w", err)
	}
	defer release()
	slog.Info("server_configured", "verifier", cfg.Auth.Verifier, "store", cfg.Store.Driver, "cors_origin", cfg.CORSOrigin)

	h := handler.NewTodoHandler(store)
	listen := cfg.Addr()
	if *addr != "" {
		listen = *addr
	}
	return startServer(ctx, listen, routing(cfg, h, verifier))
}

func main() {
	//structure logging before config is known
	setupSlog(slog.LevelInfo)

	if err := run(); err != nil {
		slog.Error("server_start_failed", "error", err)
		os.Exit(1)
	}
}
