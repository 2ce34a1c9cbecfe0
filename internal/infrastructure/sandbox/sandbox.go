// Package sandbox evaluates analysis code written by the model with the yaegi
// Go interpreter. Only a small allowlist of standard packages is visible,
// plus a "dataset" package bound to the configured engagement CSV.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
	"engagement-advisor/internal/infrastructure/dataset"
)

const (
	datasetImport = "dataset"
	entryPoint    = "main.Run"
)

var allowedPackages = map[string]bool{
	"bytes":         true,
	"encoding/json": true,
	"errors":        true,
	"fmt":           true,
	"math":          true,
	"sort":          true,
	"strconv":       true,
	"strings":       true,
	"time":          true,
	datasetImport:   true,
}

// blockedSymbols are removed from allowed packages because they run callbacks
// on goroutines the sandbox cannot recover.
var blockedSymbols = map[string][]string{
	"time/time": {"AfterFunc"},
}

type ErrorKind string

const (
	KindFileNotFound     ErrorKind = "file_not_found"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindMalformedData    ErrorKind = "malformed_data"
	KindOther            ErrorKind = "other"
)

// ExecutionError is returned for any failure of submitted code. Kind tells
// the model which error variant to report.
type ExecutionError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

type Config struct {
	DatasetPath string
	Location    *time.Location
	Timeout     time.Duration
}

var _ output.CodeRunner = (*Sandbox)(nil)

type Sandbox struct {
	cfg    Config
	logger output.LoggerPort
}

func New(cfg Config, logger output.LoggerPort) *Sandbox {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Sandbox{cfg: cfg, logger: logger.Named("sandbox")}
}

// Run evaluates code that defines func Run() (interface{}, error) and returns
// its result normalised to JSON types. When Run returns nil, anything the code
// printed is returned instead.
func (s *Sandbox) Run(ctx context.Context, code string) (interface{}, error) {
	src := wrapCode(code)
	if err := checkSource(src); err != nil {
		return nil, &ExecutionError{Kind: KindOther, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var stdout bytes.Buffer
	i := interp.New(interp.Options{Stdout: &stdout, Stderr: &stdout})
	if err := i.Use(allowedSymbols()); err != nil {
		return nil, &ExecutionError{Kind: KindOther, Err: fmt.Errorf("load stdlib: %w", err)}
	}
	if err := i.Use(s.datasetSymbols()); err != nil {
		return nil, &ExecutionError{Kind: KindOther, Err: fmt.Errorf("load dataset package: %w", err)}
	}

	type result struct {
		value interface{}
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()

		if _, err := i.EvalWithContext(ctx, src); err != nil {
			done <- result{err: fmt.Errorf("evaluate: %w", err)}
			return
		}
		fn, err := i.EvalWithContext(ctx, entryPoint)
		if err != nil {
			done <- result{err: fmt.Errorf("code must define func Run() (interface{}, error): %w", err)}
			return
		}
		run, ok := fn.Interface().(func() (interface{}, error))
		if !ok {
			done <- result{err: fmt.Errorf("Run has signature %s, want func() (interface{}, error)", fn.Type())}
			return
		}
		value, err := run()
		done <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("code execution abandoned", "timeout", s.cfg.Timeout.String())
		return nil, &ExecutionError{Kind: KindOther, Err: fmt.Errorf("execution timed out after %s: %w", s.cfg.Timeout, ctx.Err())}
	case res := <-done:
		if res.err != nil {
			return nil, &ExecutionError{Kind: classify(res.err), Err: res.err}
		}
		if res.value == nil && stdout.Len() > 0 {
			return strings.TrimSpace(stdout.String()), nil
		}
		value, err := normalize(res.value)
		if err != nil {
			return nil, &ExecutionError{Kind: KindOther, Err: err}
		}
		return value, nil
	}
}

func (s *Sandbox) datasetSymbols() interp.Exports {
	path, loc := s.cfg.DatasetPath, s.cfg.Location

	return interp.Exports{
		datasetImport + "/" + datasetImport: {
			"Path":     reflect.ValueOf(func() string { return path }),
			"Timezone": reflect.ValueOf(func() string { return loc.String() }),
			"Load": reflect.ValueOf(func() ([]entity.EngagementRecord, error) {
				return dataset.Load(path, loc)
			}),
			"HourlyAverages": reflect.ValueOf(func(records []entity.EngagementRecord) []entity.HourlyEngagement {
				return dataset.HourlyAverages(records, loc)
			}),
			"Best":               reflect.ValueOf(dataset.Best),
			"HourLabel":          reflect.ValueOf(dataset.HourLabel),
			"IsFileNotFound":     reflect.ValueOf(func(err error) bool { return errors.Is(err, dataset.ErrFileNotFound) }),
			"IsPermissionDenied": reflect.ValueOf(func(err error) bool { return errors.Is(err, dataset.ErrPermissionDenied) }),
			"IsMalformedData":    reflect.ValueOf(func(err error) bool { return errors.Is(err, dataset.ErrMalformedData) }),

			"Record": reflect.ValueOf((*entity.EngagementRecord)(nil)),
			"Hourly": reflect.ValueOf((*entity.HourlyEngagement)(nil)),
		},
	}
}

func allowedSymbols() interp.Exports {
	symbols := make(interp.Exports)
	for key, values := range stdlib.Symbols {
		idx := strings.LastIndex(key, "/")
		if idx < 0 || !allowedPackages[key[:idx]] {
			continue
		}
		blocked, ok := blockedSymbols[key]
		if !ok {
			symbols[key] = values
			continue
		}
		filtered := make(map[string]reflect.Value, len(values))
		for name, v := range values {
			filtered[name] = v
		}
		for _, name := range blocked {
			delete(filtered, name)
		}
		symbols[key] = filtered
	}
	return symbols
}

func wrapCode(code string) string {
	if strings.HasPrefix(strings.TrimSpace(code), "package ") {
		return code
	}
	return "package main\n\n" + code
}

// checkSource rejects code outside package main, imports beyond the
// allowlist and go statements. A panic on a goroutine started by the code
// would bypass Run's recover and end the process.
func checkSource(src string) error {
	file, err := parser.ParseFile(token.NewFileSet(), "", src, parser.SkipObjectResolution)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if file.Name.Name != "main" {
		return fmt.Errorf("code must be in package main, got %s", file.Name.Name)
	}

	var goStmt *ast.GoStmt
	ast.Inspect(file, func(n ast.Node) bool {
		if stmt, ok := n.(*ast.GoStmt); ok && goStmt == nil {
			goStmt = stmt
		}
		return goStmt == nil
	})
	if goStmt != nil {
		return errors.New("go statements are not allowed")
	}

	var forbidden []string
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil || !allowedPackages[path] {
			forbidden = append(forbidden, spec.Path.Value)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports %s (allowed: %s)", strings.Join(forbidden, ", "), strings.Join(AllowedImports(), ", "))
	}
	return nil
}

// AllowedImports lists the packages submitted code may import.
func AllowedImports() []string {
	pkgs := make([]string, 0, len(allowedPackages))
	for pkg := range allowedPackages {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, dataset.ErrFileNotFound):
		return KindFileNotFound
	case errors.Is(err, dataset.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, dataset.ErrMalformedData):
		return KindMalformedData
	}

	// Interpreted code may rebuild the error from its text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, dataset.ErrFileNotFound.Error()):
		return KindFileNotFound
	case strings.Contains(msg, dataset.ErrPermissionDenied.Error()):
		return KindPermissionDenied
	case strings.Contains(msg, dataset.ErrMalformedData.Error()):
		return KindMalformedData
	}
	return KindOther
}

// normalize round-trips v through encoding/json so callers only ever see
// maps, slices, strings, bools, float64 and nil.
func normalize(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("result is not JSON encodable: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}
