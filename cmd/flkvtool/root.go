package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"flkv/internal/buffer"
	"flkv/internal/config"
	"flkv/internal/logging"
	"flkv/pkg/flkv"
)

// options holds the persistent flags and the state derived from them.
type options struct {
	configPath string
	engine     string
	dataDir    string
	memory     bool
	jsonOutput bool
	store      string
	hexKeys    bool
	logLevel   string
	env        string

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "flkvtool",
		Short:         "Inspect and edit embedded flkv stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.engine, "engine", "", "storage engine: "+strings.Join(config.Engines, ", "))
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory holding persistent stores")
	flags.BoolVar(&opts.memory, "memory", false, "use a fresh in-memory store")
	flags.BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")
	flags.StringVar(&opts.store, "store", "default", "store name under the data directory")
	flags.BoolVar(&opts.hexKeys, "hex", false, "keys and values are hex encoded")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.env, "env", "", "logging preset: development, production, staging, embedded, test")

	rootCmd.AddCommand(
		newPutCmd(opts),
		newGetCmd(opts),
		newDeleteCmd(opts),
		newBatchCmd(opts),
		newListCmd(opts),
		newFlushCmd(opts),
		newCompactCmd(opts),
		newStatsCmd(opts),
		newCheckCmd(opts),
		newServeCmd(opts),
	)

	return rootCmd
}

// load resolves the configuration: file and environment first, then any
// flags given on the command line.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	if o.engine != "" {
		cfg.Storage.Engine = o.engine
	}
	if o.dataDir != "" {
		cfg.Storage.DataDir = o.dataDir
	}
	if o.env != "" && !logging.SetupEnvironmentLogging(cfg, o.env) {
		return fmt.Errorf("unknown --env %q", o.env)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.cfg = cfg
	if cfg.Logging.Output == "stderr" {
		o.logger = logging.NewLoggerWithWriter(&cfg.Logging, cmd.ErrOrStderr())
	} else {
		o.logger = logging.NewLogger(&cfg.Logging)
	}
	slog.SetDefault(o.logger.Logger)
	return nil
}

// withStore opens the selected store, runs fn and closes everything again.
func (o *options) withStore(fn func(r *flkv.Runtime, db flkv.DB) error) (err error) {
	r := flkv.NewRuntime(o.cfg, o.logger)
	defer func() {
		if closeErr := r.Shutdown(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	db, err := r.Open(o.store, o.memory)
	if err != nil {
		return err
	}
	return fn(r, db)
}

func (o *options) decode(arg string) (buffer.Buffer, error) {
	if !o.hexKeys {
		return buffer.FromString(arg), nil
	}
	b, err := hex.DecodeString(arg)
	if err != nil {
		return buffer.Buffer{}, fmt.Errorf("invalid hex %q: %w", arg, err)
	}
	return buffer.Copy(b), nil
}

func (o *options) encode(b []byte) string {
	if o.hexKeys {
		return hex.EncodeToString(b)
	}
	return string(b)
}

func outputJSON(w io.Writer, data interface{}) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
