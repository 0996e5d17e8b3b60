// Package shapegen generates typed Go clients from a service model.
//
// The generated package holds one Go type per structure, union and enum the
// service uses, a typed error per error shape, and a Client with one method
// per operation. Methods are thin wrappers around shapeclient.Invoke, so all
// protocol behavior lives in the runtime; the model itself is embedded.
package shapegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/shapegen/sink"
)

// Result describes a generation run.
type Result struct {
	// Files lists the written paths, sorted.
	Files []string

	// Warnings are non-fatal problems, such as renamed identifiers.
	Warnings []string
}

// Generate writes a Go client package for one service of m.
func Generate(ctx context.Context, m *model.Model, cfg *Config) (*Result, error) {
	if cfg == nil {
		return nil, errors.New("shapegen: config is required")
	}
	cfg = applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := cfg.Sink
	if out == nil {
		if cfg.Out == "" {
			return nil, errors.New("shapegen: Out or Sink is required")
		}
		out = sink.NewFilesystemSink(cfg.Out)
	}
	if errs := m.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("shapegen: invalid model: %w", errors.Join(errs...))
	}

	g, err := newGenerator(m, cfg)
	if err != nil {
		return nil, err
	}

	files := map[string]func() ([]byte, error){
		"types.go":    g.typesFile,
		"errors.go":   g.errorsFile,
		"client.go":   g.clientFile,
		cfg.ModelFile: g.modelFile,
	}
	eg, ctx := errgroup.WithContext(ctx)
	for name, emit := range files {
		eg.Go(func() error {
			src, err := emit()
			if err != nil {
				return fmt.Errorf("generate %s: %w", name, err)
			}
			if strings.HasSuffix(name, ".go") {
				formatted, err := imports.Process(name, src, nil)
				if err != nil {
					return fmt.Errorf("format %s: %w\n%s", name, err, src)
				}
				src = formatted
			}
			return out.WriteFile(ctx, name, src)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	paths := lo.Keys(files)
	slices.Sort(paths)
	return &Result{Files: paths, Warnings: g.warnings}, nil
}

// generator holds the shapes selected for one service and their Go names.
type generator struct {
	cfg     *Config
	model   *model.Model
	service *model.Service
	ops     []*model.Operation
	names   *namer

	// shapes are the named shapes to emit, sorted by Go name.
	shapes   []*model.Shape
	typeName map[model.ShapeID]string

	mu       sync.Mutex
	warnings []string
}

// Identifiers the generated client.go declares.
var reservedNames = []string{"Client", "New", "Model", "ServiceID"}

func newGenerator(m *model.Model, cfg *Config) (*generator, error) {
	var (
		svc *model.Service
		err error
	)
	if cfg.Service == "" {
		svc, err = m.DefaultService()
	} else {
		svc, err = m.Service(model.ShapeID(cfg.Service))
	}
	if err != nil {
		return nil, fmt.Errorf("shapegen: %w", err)
	}

	g := &generator{
		cfg:      cfg,
		model:    m,
		service:  svc,
		names:    newNamer(cfg.Initialisms),
		typeName: make(map[model.ShapeID]string),
	}
	if len(cfg.Operations) == 0 {
		g.ops = svc.Operations
	} else {
		for _, name := range cfg.Operations {
			op, ok := svc.Operation(name)
			if !ok {
				return nil, fmt.Errorf("shapegen: service %s has no operation %q", svc.ID, name)
			}
			g.ops = append(g.ops, op)
		}
	}
	if err := g.collect(); err != nil {
		return nil, err
	}
	return g, nil
}

// collect walks the operations' inputs, outputs and errors and records
// every structure, union and enum reachable from them.
func (g *generator) collect() error {
	seen := make(map[model.ShapeID]bool)
	var visit func(s *model.Shape) error
	visit = func(s *model.Shape) error {
		if seen[s.ID] || s.ID == model.Unit {
			return nil
		}
		seen[s.ID] = true
		switch s.Kind {
		case model.KindStructure, model.KindUnion, model.KindEnum, model.KindIntEnum:
			g.shapes = append(g.shapes, s)
		}
		if s.Kind == model.KindEnum || s.Kind == model.KindIntEnum {
			return nil
		}
		for _, mem := range s.Members {
			target, err := g.model.Target(mem)
			if err != nil {
				return err
			}
			if err := visit(target); err != nil {
				return err
			}
		}
		return nil
	}
	for _, op := range g.ops {
		for _, s := range append([]*model.Shape{op.Input, op.Output}, op.Errors...) {
			if err := visit(s); err != nil {
				return fmt.Errorf("shapegen: operation %s: %w", op.Name, err)
			}
		}
	}

	owners := make(map[string]model.ShapeID)
	for _, s := range g.shapes {
		name := g.names.exported(s.ID.Name())
		if lo.Contains(reservedNames, name) {
			g.warnf("type %s renamed to %sShape", s.ID, name)
			name += "Shape"
		}
		if prev, ok := owners[name]; ok {
			return fmt.Errorf("shapegen: %s and %s both map to Go type %s", prev, s.ID, name)
		}
		owners[name] = s.ID
		g.typeName[s.ID] = name
	}
	slices.SortFunc(g.shapes, func(a, b *model.Shape) int {
		return strings.Compare(g.typeName[a.ID], g.typeName[b.ID])
	})
	return nil
}

func (g *generator) warnf(format string, args ...any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.warnings = append(g.warnings, fmt.Sprintf(format, args...))
}

func (g *generator) modelFile() ([]byte, error) {
	data, err := json.MarshalIndent(g.model, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
