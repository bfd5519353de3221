package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"budgetbeacon/internal/cli"
	"budgetbeacon/internal/config"
	"budgetbeacon/internal/log"
)

var version = "dev"

// app carries what PersistentPreRunE resolves for the subcommands.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	logger  *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "budgetbeacon",
		Short: "Personal budget ledger with recurring entries",
		Long: `budgetbeacon keeps a ledger of income and expenses, a monthly budget goal
and recurring rules that fill in due entries on their own.

Storage, timezone and currency come from the environment, a .env file or --config.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}

	// Global flags
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (text, json)")
	root.PersistentFlags().String("backend", "", "data backend (memory, sqlite, redis)")
	root.PersistentFlags().String("mode", "", "storage mode (local, cloud)")

	// Bind flags to viper
	_ = a.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", root.PersistentFlags().Lookup("log-format"))
	_ = a.v.BindPFlag("data_backend", root.PersistentFlags().Lookup("backend"))
	_ = a.v.BindPFlag("storage_mode", root.PersistentFlags().Lookup("mode"))

	root.AddCommand(
		a.entriesCmd(),
		a.sampleCmd(),
		a.budgetCmd(),
		a.categoriesCmd(),
		a.recurringCmd(),
		a.materializeCmd(),
		a.summaryCmd(),
		a.settingsCmd(),
		a.backupCmd(),
		a.csvCmd(),
		a.syncCmd(),
		a.onboardingCmd(),
		a.watchCmd(),
		versionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	config.SetDefaults(a.v)
	// daemons log at info, the CLI only warns
	a.v.SetDefault("log_level", "warn")
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := config.FromViper(a.v)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cli.SetupLogger(cfg, cmd.ErrOrStderr(), log.ComponentCLI)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// withSession opens the configured session, prints its load status on stderr,
// runs fn and closes the session. Close failures, unsaved writes included, are
// returned with fn's error.
func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *cli.Session) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	session, err := cli.OpenSession(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(context.WithoutCancel(ctx)); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close session: %w", cerr))
		}
	}()

	cli.PrintStatus(cmd.ErrOrStderr(), session.LoadResult.Message())
	return fn(ctx, session)
}

func (a *app) status(cmd *cobra.Command, message string) {
	cli.PrintStatus(cmd.OutOrStdout(), message)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "budgetbeacon %s\n", version)
		},
	}
}
