package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/smtp"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/amensah/pantry/internal/api"
	"github.com/amensah/pantry/internal/config"
	"github.com/amensah/pantry/internal/db"
	"github.com/amensah/pantry/internal/notify"
	"github.com/amensah/pantry/internal/store"
	"github.com/amensah/pantry/internal/uploads"
)

func main() {
	fs := flag.NewFlagSet("pantry", flag.ContinueOnError)

	var dbPath, addr, adminUser, logPath string
	fs.StringVar(&dbPath, "db", "", "")
	fs.StringVar(&dbPath, "d", "", "")
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")
	fs.StringVar(&adminUser, "user", "admin", "")
	fs.StringVar(&adminUser, "u", "admin", "")
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: pantry [flags]

Flags:
  -d, -db <path>          SQLite database path (default: pantry.sqlite3, or PANTRY_DB)
  -a, -addr <host:port>   listen address (default: :8080, or PANTRY_ADDR)
  -u, -user <name>        admin username on first run (default: admin)
  -l, -log <path>         log file path (default: stderr only, or PANTRY_LOG)
  -h, -help               show this help and exit

Environment (optionally via .env): PANTRY_DB, PANTRY_ADDR, PANTRY_UPLOADS_DIR,
PANTRY_LOG, PANTRY_LOW_STOCK_THRESHOLD, PANTRY_EXPIRY_WINDOW_DAYS,
PANTRY_SYNC_TOKEN, PANTRY_SYNC_REMOTE_URL, PANTRY_SMTP_ADDR, PANTRY_SMTP_FROM,
PANTRY_SMTP_USER, PANTRY_SMTP_PASS
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	// Flags override the environment.
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	// Auto-init on first run.
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.DBPath, adminUser)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize database")
			os.Exit(1)
		}
		database.Close()

		printInitResult(cfg.DBPath, adminUser, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to open database")
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Error().Err(err).Msg("failed to migrate database")
		os.Exit(1)
	}
	log.Info().Str("path", cfg.DBPath).Msg("database ready")

	jwtSecret, err := store.GetJWTSecret(context.Background(), database)
	if err != nil {
		log.Error().Err(err).Msg("failed to get JWT secret")
		os.Exit(1)
	}

	uploadStore, err := uploads.NewStore(cfg.UploadsDir)
	if err != nil {
		log.Error().Err(err).Msg("failed to set up uploads directory")
		os.Exit(1)
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.SMTPAddr != "" {
		var auth smtp.Auth
		if cfg.SMTPUser != "" {
			host := cfg.SMTPAddr
			if i := strings.LastIndex(host, ":"); i >= 0 {
				host = host[:i]
			}
			auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, host)
		}
		notifier = &notify.SMTPNotifier{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom, Auth: auth}
		log.Info().Str("addr", cfg.SMTPAddr).Msg("SMTP notices enabled")
	}

	handler := api.LoggingMiddleware(api.NewRouter(database, jwtSecret, cfg, uploadStore, notifier))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
	}()

	log.Info().Str("addr", cfg.Addr).Msg("server started")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}

	log.Info().Msg("server stopped, closing database")
}

// setupLogger configures zerolog with a console writer on stderr, plus an
// optional JSON log file. Returns a cleanup that closes the file.
func setupLogger(logPath string) (func(), error) {
	zerolog.TimeFieldFormat = time.RFC3339
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}

	var cleanup func()
	writer := io.Writer(console)
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		writer = zerolog.MultiLevelWriter(console, f)
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
	return cleanup, nil
}

// initDatabase creates a new database, applies the schema, and creates the
// first manager account with a generated password.
func initDatabase(path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(database); err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("migrating schema: %w", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	if _, err := store.CreateManager(context.Background(), database, adminUsername, "", string(hash)); err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("creating admin manager: %w", err)
	}

	return database, password, nil
}

func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Manager account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password — it cannot be recovered.")
	fmt.Println("It can be changed after logging in.")
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
