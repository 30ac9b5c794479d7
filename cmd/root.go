package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/kb/internal/board"
	"github.com/joescharf/kb/internal/output"
	"github.com/joescharf/kb/internal/repo"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui         *output.UI
	boardStore *board.Store
	backend    repo.Repository

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "kb",
	Short: "Kanban issue board with optimistic moves and undo",
	Long: `kb is a kanban-style issue board. Issues live in three columns
(Backlog, In Progress, Done) and are ordered inside each column by a
priority score computed from severity, age, and rank.

Moves apply optimistically: the board updates immediately, the write
commits to the backend after a short delay, and the move stays undoable
until the undo window closes.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return boardRun(cmd.Context())
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/kb/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "kb")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("KB")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "kb")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", "")
	viper.SetDefault("role", "admin")
	viper.SetDefault("user", "")
	viper.SetDefault("latency_ms", 500)
	viper.SetDefault("write_failure_rate", 0.10)
	viper.SetDefault("commit_delay_ms", 500)
	viper.SetDefault("undo_window_sec", 5)
	viper.SetDefault("polling_interval_sec", 10)
	viper.SetDefault("page_limit", 10)
	viper.SetDefault("seed_count", 12)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// Board store initializes lazily — config/version commands run
	// without touching the backend.
}

// principalFromConfig builds the acting user for mutating commands.
func principalFromConfig() board.Principal {
	return board.Principal{
		Name:  viper.GetString("user"),
		Admin: viper.GetString("role") == "admin",
	}
}

func boardConfig() board.Config {
	return board.Config{
		CommitDelay: time.Duration(viper.GetInt("commit_delay_ms")) * time.Millisecond,
		UndoWindow:  time.Duration(viper.GetInt("undo_window_sec")) * time.Second,
		PageLimit:   viper.GetInt("page_limit"),
	}
}

// getBackend returns the shared repository, initializing it on first
// call. With db_path set the board runs on SQLite; otherwise the
// simulated in-memory backend, seeded with deterministic fixtures.
func getBackend(ctx context.Context) (repo.Repository, error) {
	if backend != nil {
		return backend, nil
	}

	if dbPath := viper.GetString("db_path"); dbPath != "" {
		s, err := repo.NewSQLite(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		if err := s.Seed(ctx, repo.SeedIssues(viper.GetInt("seed_count"), time.Now())); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("seed database: %w", err)
		}
		ui.VerboseLog("using sqlite backend: %s", dbPath)
		backend = s
		return backend, nil
	}

	backend = repo.NewMock(repo.MockConfig{
		Latency:          time.Duration(viper.GetInt("latency_ms")) * time.Millisecond,
		WriteFailureRate: viper.GetFloat64("write_failure_rate"),
		Issues:           repo.SeedIssues(viper.GetInt("seed_count"), time.Now()),
	})
	ui.VerboseLog("using simulated in-memory backend")
	return backend, nil
}

// getStore returns the shared board store, synced once on first call.
func getStore(ctx context.Context) (*board.Store, error) {
	if boardStore != nil {
		return boardStore, nil
	}

	r, err := getBackend(ctx)
	if err != nil {
		return nil, err
	}

	s := board.New(r, boardConfig())
	if err := s.GetIssues(ctx, nil); err != nil {
		return nil, fmt.Errorf("sync board: %w", err)
	}

	boardStore = s
	return boardStore, nil
}
