// Package pipeline runs one scaffold generation: discover entities, analyze
// them, emit CRUD artifacts and repair the entity sources.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/matthewbaird/scaffold/internal/analyze"
	"github.com/matthewbaird/scaffold/internal/config"
	"github.com/matthewbaird/scaffold/internal/emit"
	"github.com/matthewbaird/scaffold/internal/model"
	"github.com/matthewbaird/scaffold/internal/repair"
	"github.com/matthewbaird/scaffold/internal/source"
	"github.com/matthewbaird/scaffold/internal/source/cuesrc"
	"github.com/matthewbaird/scaffold/internal/source/sqlitesrc"
	"github.com/matthewbaird/scaffold/internal/source/textsrc"
)

// Report summarizes a completed run.
type Report struct {
	RunID       uuid.UUID
	Provider    string
	Entities    []string
	Artifacts   []string
	Routes      []string
	Findings    []Finding
	BaseWritten bool
	Repair      repair.Result
	Repaired    bool // false when the provider's sources cannot be edited
}

// Finding is one association without a backing foreign-key column.
type Finding struct {
	Entity string
	model.MissingForeignKey
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithOutput sets where progress lines go. The default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// WithLogger sets the logger for warnings and diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithSource replaces provider discovery with src. It is how callers plug
// in sources the configuration cannot describe, such as compiled ent schemas.
func WithSource(src source.ModelSource) Option {
	return func(p *Pipeline) { p.src = src }
}

// Pipeline holds the configuration of a run.
type Pipeline struct {
	cfg    config.Config
	out    io.Writer
	logger *log.Logger
	src    source.ModelSource
}

// New returns a pipeline for cfg.
func New(cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, out: os.Stdout, logger: log.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Run executes every phase in order. Files written before a failure are
// left in place.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: uuid.New()}
	p.logger.Printf("run %s", rep.RunID)

	p.printf("Phase 1: Discovering entity definitions...\n")
	defs, provider, err := p.discover(ctx)
	rep.Provider = provider
	if err != nil {
		return rep, err
	}
	p.printf("  %d definitions from the %s provider.\n", len(defs), provider)

	p.printf("Phase 2: Analyzing relationships...\n")
	schema, err := analyze.Build(defs, p.cfg.OwnerTable)
	if err != nil {
		return rep, fmt.Errorf("analyze: %w", err)
	}
	for _, e := range schema.Entities() {
		rep.Entities = append(rep.Entities, e.Name)
		for _, m := range e.MissingForeignKeys {
			rep.Findings = append(rep.Findings, Finding{Entity: e.Name, MissingForeignKey: m})
			p.logger.Printf("warning: %s.%s references %s but has no %s column", e.Name, m.Association, m.TargetEntity, m.ExpectedColumn)
		}
	}
	p.printf("  %d entities, %d missing foreign keys.\n", schema.Len(), len(rep.Findings))

	p.printf("Phase 3: Validating templates...\n")
	em, err := emit.New(emit.Options{OutputDir: p.cfg.OutputDir, AppModule: p.cfg.AppModule, AppName: p.cfg.AppName})
	if err != nil {
		for _, ce := range emit.ContractErrors(err) {
			p.logger.Printf("template %s at %s: %s is not provided", ce.Artifact, ce.Location, ce.Variable)
		}
		return rep, fmt.Errorf("templates: %w", err)
	}
	p.printf("  All templates validate.\n")

	p.printf("Phase 4: Base template...\n")
	path, written, err := em.Base(schema)
	if err != nil {
		return rep, err
	}
	rep.BaseWritten = written
	if written {
		rep.Artifacts = append(rep.Artifacts, path)
		p.printf("Generated %s\n", path)
	} else {
		p.printf("  Keeping existing %s\n", path)
	}

	p.printf("Phase 5: Generating entity artifacts...\n")
	for _, e := range schema.Entities() {
		paths, err := em.Entity(schema, e)
		for _, path := range paths {
			p.printf("Generated %s\n", path)
		}
		rep.Artifacts = append(rep.Artifacts, paths...)
		if err != nil {
			return rep, err
		}
	}

	p.printf("Phase 6: Verifying routes...\n")
	routes, err := emit.VerifyRoutes(schema)
	if err != nil {
		return rep, err
	}
	rep.Routes = routes
	for _, write := range []func() (string, error){
		func() (string, error) { return em.Manifest(routes) },
		func() (string, error) { return em.Registry(schema) },
	} {
		path, err := write()
		if err != nil {
			return rep, err
		}
		rep.Artifacts = append(rep.Artifacts, path)
		p.printf("Generated %s\n", path)
	}

	p.printf("Phase 7: Repairing entity sources...\n")
	if editable(provider) {
		res, err := repair.Apply(p.cfg.ModelsDir, schema, repair.Options{
			EnsureOwner: p.cfg.EnsureOwner,
			OwnerTable:  p.cfg.OwnerTable,
			Logger:      p.logger,
		})
		rep.Repair = res
		rep.Repaired = true
		if err != nil {
			return rep, fmt.Errorf("repair: %w", err)
		}
		for _, ins := range res.Inserted {
			p.printf("  Added %s to %s (%s:%d)\n", ins.Column, ins.Entity, ins.File, ins.Line)
		}
		if res.OwnerAdded {
			p.printf("  Added owner entity for %s\n", p.cfg.OwnerTable)
		}
		if !res.Changed() {
			p.printf("  Nothing to repair.\n")
		}
	} else {
		p.printf("  Skipping: %s sources are not edited.\n", provider)
	}

	p.printf("\nscaffold: %d entities, %d artifacts, %d routes (run %s)\n",
		len(rep.Entities), len(rep.Artifacts), len(rep.Routes), rep.RunID)
	return rep, nil
}

// editable reports whether repair may rewrite the provider's sources.
func editable(provider string) bool {
	return provider == "cue" || provider == "text"
}

func (p *Pipeline) discover(ctx context.Context) ([]model.Definition, string, error) {
	if p.src != nil {
		x := &source.Extractor{Primary: p.src, Logger: p.logger}
		return x.Extract(ctx)
	}
	switch p.cfg.Source() {
	case "sqlite":
		db, err := sqlitesrc.Open(p.cfg.SQLiteDSN)
		if err != nil {
			return nil, "sqlite", err
		}
		defer db.Close()
		x := &source.Extractor{Primary: db, Logger: p.logger}
		return x.Extract(ctx)
	case "cue":
		x := &source.Extractor{
			Primary:  cuesrc.New(p.cfg.ModelsDir),
			Fallback: textsrc.New(p.cfg.ModelsDir, p.logger),
			Logger:   p.logger,
		}
		return x.Extract(ctx)
	default:
		return nil, p.cfg.Source(), fmt.Errorf("provider %s needs a source supplied by the caller", p.cfg.Source())
	}
}
