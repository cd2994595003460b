package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/queueboard/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Backend flags override the config file and environment.
	DB       string
	PGURL    string
	RedisURL string
	Server   string
	Channel  string

	// Config is the merged configuration, set before any command runs.
	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the queueboard CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "queueboard",
		Short: "queueboard - a shared 12-row arcade queue",
		Long: `A collaborative queue board: two cabinets, twelve rows, two players per row.

Run "queueboard serve" to host the board, then point clients at it with
--server, or use the local database directly.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file (default $QUEUEBOARD_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.PGURL, "pg", "", "PostgreSQL URL; replaces the SQLite store")
	cmd.PersistentFlags().StringVar(&opts.RedisURL, "redis", "", "Redis URL for broadcasts")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", "", "queueboard server URL; client commands go through its HTTP API")
	cmd.PersistentFlags().StringVar(&opts.Channel, "channel", "", "broadcast channel name")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTextCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts, true))
	cmd.AddCommand(NewCheckCommand(opts, false))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewClearRowCommand(opts))

	return cmd
}

// load merges config sources and flags, then configures logging.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	flags := cmd.Flags()
	overlay := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	overlay("db", &cfg.DB, o.DB)
	overlay("pg", &cfg.PGURL, o.PGURL)
	overlay("redis", &cfg.RedisURL, o.RedisURL)
	overlay("server", &cfg.Server, o.Server)
	overlay("channel", &cfg.Channel, o.Channel)
	if flags.Changed("verbose") {
		cfg.Verbose = o.Verbose
	}
	o.Config = cfg
	o.Logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(o.Logger)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Config.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
