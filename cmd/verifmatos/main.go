package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/erazemk/verifmatos/internal/api"
	"github.com/erazemk/verifmatos/internal/checklist"
	"github.com/erazemk/verifmatos/internal/config"
	"github.com/erazemk/verifmatos/internal/db"
	"github.com/erazemk/verifmatos/internal/metrics"
	"github.com/erazemk/verifmatos/internal/model"
	"github.com/erazemk/verifmatos/internal/realtime"
	"github.com/erazemk/verifmatos/internal/store"
	"github.com/erazemk/verifmatos/internal/web"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	// A missing .env is the normal case in production.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: reading .env: %v\n", err)
		os.Exit(1)
	}
	cfg, problems := config.Load()

	flags := flag.NewFlagSet("verifmatos", flag.ContinueOnError)

	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	flags.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")

	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	flags.StringVar(&cfg.Addr, "a", cfg.Addr, "")

	flags.StringVar(&cfg.AdminUser, "user", cfg.AdminUser, "")
	flags.StringVar(&cfg.AdminUser, "u", cfg.AdminUser, "")

	flags.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	flags.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")

	flags.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "")
	flags.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "")

	flags.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: verifmatos [flags]

Flags:
  -d, -db <path>          SQLite database path (default: verifmatos.sqlite3, env VERIFMATOS_DB)
  -a, -addr <host:port>   listen address (default: :8080, env VERIFMATOS_ADDR)
  -u, -user <name>        admin username on first run (default: Admin, env VERIFMATOS_ADMIN)
  -l, -log <path>         log file path (default: stdout/stderr only, env VERIFMATOS_LOG)
  -r, -redis <host:port>  Redis address for multi-instance fan-out (env REDIS_ADDR)
  -h, -help               show this help and exit

Other settings are read from the environment or a .env file:
  REDIS_PASSWORD, REDIS_DB, REDIS_CHANNEL_PREFIX, FANOUT_TIMEOUT_MS,
  PUBLIC_RATE_RPS, PUBLIC_RATE_BURST, LOGIN_RATE_PER_MIN
`)
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if flags.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", flags.Arg(0))
		flags.Usage()
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	for _, p := range problems {
		slog.Warn("ignoring invalid setting", "field", p.Field, "reason", p.Message)
	}

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.DBPath, cfg.AdminUser)
		if err != nil {
			slog.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		database.Close()

		printInitResult(cfg.DBPath, cfg.AdminUser, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	slog.Info("database ready", "path", cfg.DBPath)

	jwtSecret, err := store.GetJWTSecret(context.Background(), database)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		os.Exit(1)
	}

	// Realtime fan-out: in-process unless Redis is configured.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := realtime.NewHub()
	publisher, closeBroker := newPublisher(ctx, cfg, hub)
	defer closeBroker()

	notifier := realtime.NewNotifier(publisher, cfg.FanoutTimeout)
	checklists := checklist.NewService(database, notifier)

	apiRouter := api.NewRouter(api.Options{
		DB:            database,
		JWTSecret:     jwtSecret,
		Checklists:    checklists,
		Hub:           hub,
		PublicLimiter: api.NewRateLimiter(rate.Limit(cfg.PublicRateRPS), cfg.PublicRateBurst),
		LoginLimiter:  api.NewRateLimiter(rate.Every(time.Minute/time.Duration(cfg.LoginRatePerMin)), cfg.LoginRatePerMin),
	})
	webRouter, err := web.NewRouter(database, jwtSecret, checklists)
	if err != nil {
		slog.Error("failed to set up web router", "error", err)
		os.Exit(1)
	}

	metrics.Register()

	// Combine: API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", healthz(database))
	mux.Handle("/", webRouter)

	handler := metrics.Instrument(api.LoggingMiddleware(mux), api.MetricsPath)

	// No WriteTimeout: it would cut websocket subscriptions.
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "fanout", fanoutMode(cfg))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	// Pending invalidations are bounded by the fan-out timeout.
	notifier.Wait()
	slog.Info("server stopped, closing database")
}

// newPublisher returns the Redis broker when REDIS_ADDR is set and the local
// hub otherwise. The returned function releases the broker.
//
// An unreachable Redis does not stop the server: checks are still accepted
// and signalled to this instance's viewers while the broker keeps
// resubscribing in the background.
func newPublisher(ctx context.Context, cfg config.Config, hub *realtime.Hub) (realtime.Publisher, func()) {
	if cfg.RedisAddr == "" {
		return &realtime.LocalBroker{Hub: hub}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	broker := realtime.NewRedisBroker(client, hub, cfg.RedisChannelPrefix)
	if err := broker.Start(ctx); err != nil {
		slog.Warn("redis unreachable, fan-out limited to this instance until it recovers",
			"addr", cfg.RedisAddr, "error", err)
	}

	return broker, func() {
		if err := broker.Close(); err != nil {
			slog.Warn("failed to close redis subscription", "error", err)
		}
		client.Close()
	}
}

func fanoutMode(cfg config.Config) string {
	if cfg.RedisAddr == "" {
		return "local"
	}
	return "redis"
}

// healthz reports whether the database answers.
func healthz(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := database.PingContext(ctx); err != nil {
			slog.Error("health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	}
}

// initDatabase creates a new database, ensures the schema, and creates the admin user.
func initDatabase(path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail(fmt.Errorf("ensuring schema: %w", err))
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fail(fmt.Errorf("hashing password: %w", err))
	}

	if _, err := store.CreateUser(context.Background(), database, adminUsername, string(hash), model.RoleAdmin); err != nil {
		return fail(fmt.Errorf("creating admin user: %w", err))
	}

	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
