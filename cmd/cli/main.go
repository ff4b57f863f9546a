// cmd/cli/main.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/cmdmux/internal/app"
	"github.com/keshon/cmdmux/internal/config"
	"github.com/keshon/cmdmux/internal/console"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/spf13/cobra"
)

var (
	envFile string
	envName string
	debug   bool
	exec    string
)

var rootCmd = &cobra.Command{
	Use:   "cmdmux",
	Short: "Run commands from the terminal",
	Long: `cmdmux hosts the command set in a local console.

Type a command line to run it as the operator, "as <player> <line>" to run
it as a simulated player, "tab <line>" to list completions, "join"/"leave"
to change who is online, "who" to list players and "quit" to exit.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.Flags().StringVar(&envName, "env", "", "override CMDMUX_ENV (dev, test or prod)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().StringVarP(&exec, "exec", "e", "", "run one command line and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(c *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg, err := config.New()
	if err != nil {
		return err
	}
	if c.Flags().Changed("env") {
		if cfg.Env, err = cmd.ParseEnv(envName); err != nil {
			return err
		}
	}
	if debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	// Log lines go to stderr so they don't interleave with replies.
	a, err := app.New(cfg, app.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	con := console.New(a.Permissions,
		console.WithOutput(os.Stdout),
		console.WithLogger(a.Log.With().Str("component", "console").Logger()),
		console.WithActors(a.Permissions.Actors()...),
	)
	con.Attach(a.Dispatcher(con.Host(a.Scheduler), a.Handlers()...))

	if exec != "" {
		return con.Exec(ctx, con.Self(), exec)
	}

	a.Log.Info().Str("env", cfg.Env.String()).Msg("console ready")
	return con.Serve(ctx, os.Stdin)
}
