// Package emit renders the CRUD artifacts of each entity: validation
// rules, route handlers, blueprint wiring and HTML templates.
//
// Every artifact kind is a template bound to a data struct. Templates are
// checked against their struct when the Emitter is built, so a reference
// to a value the generator does not supply fails before anything is
// written.
package emit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matthewbaird/scaffold/internal/analyze"
	"github.com/matthewbaird/scaffold/internal/model"
)

// Options configures an Emitter.
type Options struct {
	OutputDir string // root of the generated tree
	AppModule string // Go module path of the generated application
	AppName   string // shown in the base template
}

// Emitter writes artifacts under Options.OutputDir.
type Emitter struct {
	opts Options

	forms         *artifact[formsData]
	routes        *artifact[routesData]
	blueprint     *artifact[blueprintData]
	list          *artifact[listData]
	form          *artifact[formPageData]
	view          *artifact[viewData]
	formMacros    *artifact[macroData]
	displayMacros *artifact[macroData]
	base          *artifact[baseData]
	registry      *artifact[registryData]
}

// New parses and validates every template. The returned error joins all
// parse failures and *ContractError values.
func New(opts Options) (*Emitter, error) {
	if opts.AppName == "" {
		opts.AppName = "App"
	}
	var errs []error
	em := &Emitter{
		opts:          opts,
		forms:         load[formsData](&errs, "forms.go.tmpl"),
		routes:        load[routesData](&errs, "routes.go.tmpl"),
		blueprint:     load[blueprintData](&errs, "blueprint.go.tmpl"),
		list:          load[listData](&errs, "list.html.tmpl"),
		form:          load[formPageData](&errs, "form.html.tmpl"),
		view:          load[viewData](&errs, "view.html.tmpl"),
		formMacros:    load[macroData](&errs, "forms_macros.html.tmpl"),
		displayMacros: load[macroData](&errs, "display_macros.html.tmpl"),
		base:          load[baseData](&errs, "base.html.tmpl"),
		registry:      load[registryData](&errs, "registry.go.tmpl"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return em, nil
}

// Entity renders and writes every artifact of e. It returns the paths
// written so far, also on error; earlier files are not rolled back.
func (em *Emitter) Entity(s *model.Schema, e *model.Entity) ([]string, error) {
	children := analyze.Children(s, e)
	tmplDir := filepath.Join("templates", e.Table)
	steps := []struct {
		rel    string
		render func() ([]byte, error)
	}{
		{filepath.Join(e.Table, "forms.go"), func() ([]byte, error) { return em.forms.render(em.formsData(e)) }},
		{filepath.Join(e.Table, "routes.go"), func() ([]byte, error) { return em.routes.render(em.routesData(s, e, children)) }},
		{filepath.Join(e.Table, "blueprint.go"), func() ([]byte, error) { return em.blueprint.render(em.blueprintData(e)) }},
		{filepath.Join(tmplDir, "list.html"), func() ([]byte, error) { return em.list.render(listPage(s, e)) }},
		{filepath.Join(tmplDir, "form.html"), func() ([]byte, error) { return em.form.render(formPage(s, e)) }},
		{filepath.Join(tmplDir, "view.html"), func() ([]byte, error) { return em.view.render(viewPage(e, children)) }},
		{filepath.Join(tmplDir, "macros", "forms.html"), func() ([]byte, error) { return em.formMacros.render(macros(e)) }},
		{filepath.Join(tmplDir, "macros", "display.html"), func() ([]byte, error) { return em.displayMacros.render(macros(e)) }},
	}

	var written []string
	for _, st := range steps {
		path := filepath.Join(em.opts.OutputDir, st.rel)
		data, err := st.render()
		if err != nil {
			if data != nil {
				if werr := writeFile(path, data); werr == nil {
					return written, fmt.Errorf("%s: %w\nUnformatted code written to %s", e.Name, err, path)
				}
			}
			return written, fmt.Errorf("%s: %w", e.Name, err)
		}
		if err := writeFile(path, data); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// Base writes templates/base.html unless it already exists. It reports
// whether the file was written.
func (em *Emitter) Base(s *model.Schema) (string, bool, error) {
	path := filepath.Join(em.opts.OutputDir, "templates", "base.html")
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return path, false, fmt.Errorf("checking %s: %w", path, err)
	}
	data, err := em.base.render(em.baseData(s))
	if err != nil {
		return path, false, err
	}
	if err := writeFile(path, data); err != nil {
		return path, false, err
	}
	return path, true, nil
}

// Registry writes blueprints/blueprints.go, which registers every entity.
func (em *Emitter) Registry(s *model.Schema) (string, error) {
	path := filepath.Join(em.opts.OutputDir, "blueprints", "blueprints.go")
	data, err := em.registry.render(em.registryData(s))
	if err != nil {
		return path, err
	}
	return path, writeFile(path, data)
}

// Manifest writes routes.txt, one "METHOD /path" per line.
func (em *Emitter) Manifest(routes []string) (string, error) {
	path := filepath.Join(em.opts.OutputDir, "routes.txt")
	var b strings.Builder
	for _, r := range routes {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	return path, writeFile(path, []byte(b.String()))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
