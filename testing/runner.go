package testing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jmllang/jml/importer"
	"github.com/jmllang/jml/object"
	"github.com/jmllang/jml/vm"
	"github.com/rs/zerolog"
)

// TestFileSuffix marks files that contain tests.
const TestFileSuffix = "_test" + importer.DefaultExtension

// TestPrefix marks the global functions that are tests.
const TestPrefix = "test_"

// Config holds configuration for running tests.
type Config struct {
	// Patterns specifies files or directories to search for tests.
	// Default is current directory.
	Patterns []string

	// RunPattern filters tests to run by name regex.
	RunPattern string

	// Stdout receives what the scripts print. Default is io.Discard.
	Stdout io.Writer

	// Logger receives the machines' debug events.
	Logger *zerolog.Logger
}

// DiscoverTestFiles finds all *_test.jml files matching the given patterns.
// A pattern ending in "..." searches recursively. If no patterns are
// provided, searches the current directory.
func DiscoverTestFiles(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if isTestFile(path) && !seen[path] {
			files = append(files, path)
			seen[path] = true
		}
	}

	for _, pattern := range patterns {
		if strings.Contains(pattern, "*") {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			for _, m := range matches {
				add(m)
			}
			continue
		}

		recursive := false
		searchDir := pattern
		if strings.HasSuffix(pattern, "...") {
			recursive = true
			searchDir = strings.TrimSuffix(strings.TrimSuffix(pattern, "..."), "/")
			if searchDir == "" {
				searchDir = "."
			}
		}

		info, err := os.Stat(searchDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("path not found: %s", searchDir)
			}
			return nil, err
		}
		if !info.IsDir() {
			add(pattern)
			continue
		}

		if recursive {
			err = filepath.Walk(searchDir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() {
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			continue
		}
		entries, err := os.ReadDir(searchDir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				add(filepath.Join(searchDir, e.Name()))
			}
		}
	}
	return files, nil
}

func isTestFile(path string) bool {
	return strings.HasSuffix(path, TestFileSuffix)
}

// DiscoverTestFunctions returns the names of the test functions defined in
// globals, in definition order.
func DiscoverTestFunctions(globals *object.Map) []string {
	var tests []string
	globals.Each(func(key *object.String, value object.Value) bool {
		if _, ok := value.AsObject().(*object.Closure); ok && strings.HasPrefix(key.Chars, TestPrefix) {
			tests = append(tests, key.Chars)
		}
		return true
	})
	return tests
}

// Run executes tests according to the given configuration.
func Run(ctx context.Context, cfg *Config) (*Summary, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	files, err := DiscoverTestFiles(cfg.Patterns)
	if err != nil {
		return nil, err
	}

	var runRe *regexp.Regexp
	if cfg.RunPattern != "" {
		runRe, err = regexp.Compile(cfg.RunPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid run pattern: %w", err)
		}
	}

	summary := &Summary{}
	start := time.Now()
	for _, file := range files {
		summary.Files = append(summary.Files, runTestFile(ctx, cfg, file, runRe))
	}
	summary.Duration = time.Since(start)
	summary.ComputeTotals()
	return summary, nil
}

// newMachine creates the machine a test file runs in. Imports resolve
// relative to the file's directory.
func newMachine(cfg *Config, filename string) *vm.VirtualMachine {
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	opts := []vm.Option{
		vm.WithStdout(stdout),
		vm.WithStderr(io.Discard),
		vm.WithFilename(filename),
		vm.WithImporter(importer.NewLocalImporter(filepath.Dir(filename))),
	}
	if cfg.Logger != nil {
		opts = append(opts, vm.WithLogger(*cfg.Logger))
	}
	return vm.New(opts...)
}

func runTestFile(ctx context.Context, cfg *Config, filename string, runRe *regexp.Regexp) *FileResult {
	result := &FileResult{Filename: filename}

	data, err := os.ReadFile(filename)
	if err != nil {
		result.CompileErr = err
		return result
	}
	source := string(data)

	// Load the file once to find its tests.
	machine := newMachine(cfg, filename)
	if _, err := machine.Interpret(ctx, source); err != nil {
		machine.Free()
		result.CompileErr = err
		return result
	}
	names := DiscoverTestFunctions(machine.Globals())
	machine.Free()

	for _, name := range names {
		if runRe != nil && !runRe.MatchString(name) {
			continue
		}
		result.Tests = append(result.Tests, runSingleTest(ctx, cfg, filename, source, name))
	}
	return result
}

// runSingleTest runs one test function on a fresh machine.
func runSingleTest(ctx context.Context, cfg *Config, filename, source, name string) *TestResult {
	result := &TestResult{Name: name}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	machine := newMachine(cfg, filename)
	defer machine.Free()

	if _, err := machine.Interpret(ctx, source); err != nil {
		result.Status = StatusError
		result.Error = err
		return result
	}
	fn, ok := machine.Get(name)
	if !ok {
		result.Status = StatusError
		result.Error = fmt.Errorf("test function %q not found", name)
		return result
	}

	tc := NewTestContext(name, filename)
	h := machine.Heap()
	t := object.Obj(tc.Module(h))
	h.Exempt(t)
	_, err := machine.Call(ctx, fn, t)
	h.Unexempt()

	result.Logs = tc.Logs()
	result.Failures = tc.Failures()
	switch {
	case err != nil:
		result.Status = StatusError
		result.Error = err
	case tc.Skipped():
		result.Status = StatusSkipped
		result.SkipReason = tc.SkipReason()
	case tc.Failed():
		result.Status = StatusFailed
	default:
		result.Status = StatusPassed
	}
	return result
}
