// Package deskctl implements the deskctl command line: the same screens and
// actions as the PayDesk service, driven from a terminal against the PHP
// backend directly.
package deskctl

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// options holds the persistent flags.
type options struct {
	cfgFile        string
	verbose        bool
	webservicesURL string
	actor          string
}

// NewRootCmd builds the deskctl command tree. Output goes to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	app := &appEnv{}

	root := &cobra.Command{
		Use:   "deskctl",
		Short: "Operate PayDesk back-office screens from the terminal",
		Long: `deskctl lists, filters, exports and acts on the same screens the PayDesk
service exposes, talking to the PHP webservices directly.

Configuration comes from --config (or deskctl.yaml in ~/.config/paydesk or
the working directory), then DESKCTL_* environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load(cmd, opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.log != nil {
				_ = app.log.Sync()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (default ~/.config/paydesk/deskctl.yaml or ./deskctl.yaml)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&opts.webservicesURL, "webservices-url", "", "PHP webservices base URL (overrides config)")
	pf.StringVar(&opts.actor, "actor", "", "operator name recorded with actions (overrides config)")

	root.AddCommand(
		newScreensCmd(app),
		newListCmd(app),
		newExportCmd(app),
		newActCmd(app),
		newBatchCmd(app),
		newBrowseCmd(app),
	)
	return root
}

// Execute runs deskctl and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "deskctl:", err)
		os.Exit(1)
	}
}

func (a *appEnv) load(cmd *cobra.Command, opts *options) error {
	v := viper.New()
	if f := cmd.Flags().Lookup("webservices-url"); f != nil && f.Changed {
		v.Set("webservices_url", opts.webservicesURL)
	}
	if f := cmd.Flags().Lookup("actor"); f != nil && f.Changed {
		v.Set("actor", opts.actor)
	}
	cfg, err := LoadConfig(v, opts.cfgFile)
	if err != nil {
		return err
	}

	log, err := newLogger(opts.verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	return a.setup(cfg, log)
}

// newLogger writes JSON logs to stderr at warn level, or debug with
// --verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}
