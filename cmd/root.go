package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/aegis/internal/config"
	"github.com/andresmejia3/aegis/internal/store"
	"github.com/andresmejia3/aegis/internal/utils"
	"github.com/spf13/cobra"
)

var (
	// Cfg is the configuration loaded once before any subcommand runs
	Cfg *config.Config
	// DB is opened lazily by the subcommands that persist or read runs
	DB *store.Store

	cfgFile  string
	dbURL    string
	logLevel string
	logger   = slog.Default()
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "aegis",
	Short:         "Face liveness (PAD) scoring, identity matching and offline evaluation",
	Version:       Version, // This enables the --version flag
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		Cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := Cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logger = utils.NewLogger(os.Stderr, level)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
	},
}

// openStore connects to PostgreSQL on first use.
func openStore(ctx context.Context) (*store.Store, error) {
	if DB != nil {
		return DB, nil
	}
	url := resolveDBURL()
	s, err := store.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	DB = s
	return DB, nil
}

// resolveDBURL picks the connection string: --db flag, config file, AEGIS_DB_URL,
// POSTGRES_* variables, then a local default.
func resolveDBURL() string {
	if dbURL != "" {
		return dbURL
	}
	if Cfg != nil && Cfg.Database.URL != "" {
		return Cfg.Database.URL
	}
	if url := os.Getenv("AEGIS_DB_URL"); url != "" {
		return url
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	return "postgres://localhost:5432/aegis"
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to YAML config (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: postgres://localhost:5432/aegis)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}
