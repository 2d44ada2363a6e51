package jml

import (
	"io"

	"github.com/jmllang/jml/importer"
	"github.com/jmllang/jml/vm"
	"github.com/rs/zerolog"
)

// Option describes a function used to configure a jml evaluation.
type Option func(*config)

type config struct {
	globals         map[string]any
	importer        importer.Importer
	localImportPath string
	filename        string
	stdout          io.Writer
	stderr          io.Writer
	logger          *zerolog.Logger
	vmOpts          []vm.Option
}

func newConfig(opts ...Option) *config {
	cfg := &config{globals: map[string]any{}}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// VMOpts returns the virtual machine options the configuration maps to.
func (cfg *config) VMOpts() []vm.Option {
	var opts []vm.Option
	if len(cfg.globals) > 0 {
		opts = append(opts, vm.WithGlobals(cfg.globals))
	}
	if cfg.importer != nil {
		opts = append(opts, vm.WithImporter(cfg.importer))
	} else if cfg.localImportPath != "" {
		opts = append(opts, vm.WithImporter(importer.NewLocalImporter(cfg.localImportPath)))
	}
	if cfg.filename != "" {
		opts = append(opts, vm.WithFilename(cfg.filename))
	}
	if cfg.stdout != nil {
		opts = append(opts, vm.WithStdout(cfg.stdout))
	}
	if cfg.stderr != nil {
		opts = append(opts, vm.WithStderr(cfg.stderr))
	}
	if cfg.logger != nil {
		opts = append(opts, vm.WithLogger(*cfg.logger))
	}
	return append(opts, cfg.vmOpts...)
}

// WithGlobals provides global variables that are made available to jml
// evaluations. This option is additive, so multiple WithGlobals options
// may be supplied. If the same key is supplied multiple times, the last
// supplied value is used.
func WithGlobals(globals map[string]any) Option {
	return func(cfg *config) {
		for k, v := range globals {
			cfg.globals[k] = v
		}
	}
}

// WithGlobal supplies a single named global variable.
func WithGlobal(name string, value any) Option {
	return func(cfg *config) {
		cfg.globals[name] = value
	}
}

// WithImporter supplies an Importer that will be used to execute import
// statements.
func WithImporter(i importer.Importer) Option {
	return func(cfg *config) {
		cfg.importer = i
	}
}

// WithLocalImporter enables importing jml modules from the given directory.
// It is ignored when WithImporter is also given.
func WithLocalImporter(path string) Option {
	return func(cfg *config) {
		cfg.localImportPath = path
	}
}

// WithFilename sets the filename reported with compile errors.
func WithFilename(filename string) Option {
	return func(cfg *config) {
		cfg.filename = filename
	}
}

// WithStdout redirects the output of print and friends.
func WithStdout(w io.Writer) Option {
	return func(cfg *config) {
		cfg.stdout = w
	}
}

// WithStderr redirects error reports.
func WithStderr(w io.Writer) Option {
	return func(cfg *config) {
		cfg.stderr = w
	}
}

// WithLogger sets the logger that receives debug events.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = &logger
	}
}

// WithVMOptions passes options straight to the virtual machine, for
// settings such as the collector tuning that have no shorthand here.
func WithVMOptions(opts ...vm.Option) Option {
	return func(cfg *config) {
		cfg.vmOpts = append(cfg.vmOpts, opts...)
	}
}
