package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stevemurr/simple-item-server/config"
)

// cliFlags are the command-line overrides applied on top of the config file
// and the environment.
type cliFlags struct {
	configPath string
	host       string
	port       int
	backend    string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	var flags cliFlags

	root := &cobra.Command{
		Use:   "item-server",
		Short: "Simple Item Server is a small in-memory CRUD API for items",
		Long: `Simple Item Server exposes create, read, update and delete operations
over items kept in process memory.

Configuration comes from defaults, an optional YAML file (--config),
environment variables (HOST, PORT, STORE_BACKEND, ALLOWED_ORIGINS,
LOG_LEVEL, LOG_FORMAT, LOG_FILE, METRICS_ENABLED) and flags, in
increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.Flags(), flags)
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	addServeFlags(root.Flags(), &flags)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.Flags(), flags)
		},
	}
	addServeFlags(serve.Flags(), &flags)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), flags)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	addServeFlags(configCmd.Flags(), &flags)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "item-server %s (commit %s)\n", Version, Commit)
		},
	}

	root.AddCommand(serve, configCmd, versionCmd)
	return root
}

func addServeFlags(fs *pflag.FlagSet, f *cliFlags) {
	fs.StringVar(&f.host, "host", "", "listen host (env HOST)")
	fs.IntVarP(&f.port, "port", "p", 0, "listen port (env PORT)")
	fs.StringVar(&f.backend, "store", "", "store backend: memory or sqlite (env STORE_BACKEND)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: console or json (env LOG_FORMAT)")
}

// loadConfig layers flags that were explicitly set over Load's result.
func loadConfig(fs *pflag.FlagSet, f cliFlags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if fs.Changed("host") {
		cfg.Server.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Server.Port = f.port
	}
	if fs.Changed("store") {
		cfg.Store.Backend = f.backend
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// runServe is shared by the root command and "serve".
func runServe(ctx context.Context, fs *pflag.FlagSet, f cliFlags) error {
	cfg, err := loadConfig(fs, f)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return serve(ctx, cfg)
}
