package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"solidcore/internal/core"
	"solidcore/internal/platform/config"
	"solidcore/internal/platform/logging"
	"solidcore/plugins/sketch"
)

// app carries the state shared by every subcommand for one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer
	load   func() (config.Config, error)

	storage    string
	sqlitePath string
	encoding   string
	logLevel   string
	logFormat  string
	policyPath string
	blobDriver string
	blobRoot   string
	maxStates  int

	style palette

	cfg     config.Config
	log     *logging.Logger
	svc     *core.Service
	close   func() error
	metrics *prometheus.Registry
}

func newRootCmd(out, errOut io.Writer, load func() (config.Config, error)) *cobra.Command {
	a := &app{out: out, errOut: errOut, load: load, style: newPalette(out)}
	root := &cobra.Command{
		Use:           "solidctl",
		Short:         "Operate a solidcore document store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.storage, "storage", "", "archive storage driver: memory, sqlite or postgres")
	pf.StringVar(&a.sqlitePath, "sqlite-path", "", "sqlite database file")
	pf.StringVar(&a.encoding, "encoding", "", "archive encoding: json or cbor")
	pf.StringVar(&a.logLevel, "log-level", "", "log level")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: json, console or auto")
	pf.StringVar(&a.policyPath, "policy", "", "attribute policy YAML file")
	pf.StringVar(&a.blobDriver, "blob", "", "export blob driver: fs, s3 or memory")
	pf.StringVar(&a.blobRoot, "blob-root", "", "export directory for the fs blob driver")
	pf.IntVar(&a.maxStates, "max-states", 0, "undo history limit, 0 for unlimited")

	root.AddCommand(
		newDemoCmd(a),
		newListCmd(a),
		newInspectCmd(a),
		newExportCmd(a),
		newDeleteCmd(a),
		newPolicyCmd(a),
	)
	return root
}

func (a *app) configure(cmd *cobra.Command) (config.Config, error) {
	cfg, err := a.load()
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("storage", &cfg.StorageDriver, a.storage)
	set("sqlite-path", &cfg.SQLitePath, a.sqlitePath)
	set("encoding", &cfg.ArchiveEncoding, a.encoding)
	set("log-level", &cfg.LogLevel, a.logLevel)
	set("log-format", &cfg.LogFormat, a.logFormat)
	set("policy", &cfg.AttribPolicy, a.policyPath)
	set("blob", &cfg.Blob.Driver, a.blobDriver)
	set("blob-root", &cfg.Blob.FSRoot, a.blobRoot)
	if flags.Changed("max-states") {
		cfg.MaxStates = a.maxStates
	}
	return cfg, cfg.Validate()
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := a.configure(cmd)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log, err = logging.New(a.errOut, logging.Options{Level: cfg.LogLevel, Console: a.consoleLogs(cfg.LogFormat)})
	if err != nil {
		return err
	}
	a.metrics = prometheus.NewRegistry()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := core.OpenService(ctx, cfg, nil,
		core.WithLogger(a.log.With("component", "service")),
		core.WithMetricsRecorder(core.NewPrometheusMetricsRecorder(a.metrics)),
	)
	if err != nil {
		return err
	}
	if _, err := svc.InstallPlugin(sketch.New()); err != nil {
		_ = closeFn()
		return err
	}
	a.svc, a.close = svc, closeFn
	a.log.Debug("service ready", "storage", cfg.StorageDriver, "blob", cfg.Blob.Driver, "encoding", cfg.ArchiveEncoding)
	return nil
}

func (a *app) consoleLogs(format string) bool {
	switch format {
	case config.LogConsole:
		return true
	case config.LogAuto:
		f, ok := a.errOut.(*os.File)
		return ok && isatty.IsTerminal(f.Fd())
	}
	return false
}

// runE wraps a subcommand body so the archive store is closed whether or not
// the body fails.
func (a *app) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := a.shutdown(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (a *app) shutdown() error {
	if a.close == nil {
		return nil
	}
	err := a.close()
	a.close = nil
	if err != nil {
		return fmt.Errorf("close archive store: %w", err)
	}
	return nil
}
