// Package cli implements the metainf command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iVampireSP/metainf/internal/config"
	"github.com/iVampireSP/metainf/internal/ctxlog"
	"github.com/iVampireSP/metainf/internal/diag"
	"github.com/iVampireSP/metainf/internal/driver"
	"github.com/iVampireSP/metainf/internal/gosource"
	"github.com/iVampireSP/metainf/internal/yamlsource"
)

// Exit codes.
const (
	exitSuccess = 0
	exitFailure = 1
)

// errDiagnostics marks a run that completed but reported ERROR diagnostics.
var errDiagnostics = errors.New("errors were reported")

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	dir        string
	configFile string
	output     string
	verbose    bool
}

// generateFlags are shared by the root command and generate.
type generateFlags struct {
	clean bool
	from  string
}

// NewRootCmd creates the top-level "metainf" command. Run without a
// subcommand it behaves like "metainf generate", so it can be used from a
// //go:generate line.
func NewRootCmd() *cobra.Command {
	var flags rootFlags
	var gen generateFlags

	root := &cobra.Command{
		Use:   "metainf",
		Short: "Generate META-INF/services provider registries",
		Long: "metainf scans type declarations marked //metainf:service, works out the\n" +
			"contract each one implements and merges them into META-INF/services manifests.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, &flags, &gen)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.dir, "dir", "C", "", "run as if started in this directory")
	pf.StringVar(&flags.configFile, "config", "", "config file (default: .metainf.yaml in the module root)")
	pf.StringVarP(&flags.output, "output", "o", "", "output root holding META-INF/services (default: module root)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose logging")
	addGenerateFlags(root, &gen)

	root.AddCommand(newGenerateCmd(&flags))
	root.AddCommand(newCheckCmd(&flags))
	root.AddCommand(newWatchCmd(&flags))

	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errDiagnostics) {
			fmt.Fprintf(os.Stderr, "metainf: %v\n", err)
		}
		return exitFailure
	}
	return exitSuccess
}

func addGenerateFlags(cmd *cobra.Command, gen *generateFlags) {
	cmd.Flags().BoolVar(&gen.clean, "clean", false, "remove existing manifests first (full rebuild)")
	cmd.Flags().StringVar(&gen.from, "from", "", "read declarations from a YAML stream instead of scanning Go packages")
}

// env is the per-invocation state shared by the subcommands.
type env struct {
	ctx       context.Context
	cfg       *config.Config
	logger    *slog.Logger
	collector *diag.Collector
}

// reporter logs diagnostics and records them for the exit code.
func (e *env) reporter() diag.Reporter {
	return diag.Tee{diag.LogReporter{Logger: e.logger}, e.collector}
}

func setup(cmd *cobra.Command, flags *rootFlags) (*env, error) {
	logger := newLogger(cmd.ErrOrStderr(), flags.verbose)

	dir := flags.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		dir = wd
	}
	root := config.FindModuleRoot(dir)

	v := config.New()
	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v, root, flags.configFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration", "module", cfg.Module, "root", cfg.Root, "output", cfg.Output, "scan", cfg.Scan)

	return &env{
		ctx:       ctxlog.WithLogger(cmd.Context(), logger),
		cfg:       cfg,
		logger:    logger,
		collector: &diag.Collector{},
	}, nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		if err := v.BindPFlag(config.KeyOutput, f); err != nil {
			return fmt.Errorf("bind output flag: %w", err)
		}
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("run", uuid.NewString())
}

// openSource picks the declaration source: a YAML stream when one is named
// by flag or config, otherwise the Go packages matched by the scan patterns.
func openSource(cfg *config.Config, from string) (driver.Source, func() error, error) {
	if from == "" {
		from = cfg.Declarations
	}
	if from != "" {
		src, err := yamlsource.Open(from)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	}
	return gosource.NewScanner(cfg, gosource.LoadIgnore(cfg.Root)), func() error { return nil }, nil
}
