// Package cuesrc is the live model provider. It evaluates the models
// directory as a CUE package and reads entity structure from the result.
package cuesrc

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/matthewbaird/scaffold/internal/model"
	"github.com/matthewbaird/scaffold/internal/source"
)

// Vocabulary is the column vocabulary package ("package db") that entity
// definitions import.
//
//go:embed vocabulary.cue
var Vocabulary string

// VocabularyBody returns Vocabulary without its package clause, for
// compiling the vocabulary into another package.
func VocabularyBody() string {
	_, body, _ := strings.Cut(Vocabulary, "\n")
	return body
}

// Source loads entity definitions by evaluating CUE.
type Source struct {
	dir   string
	value *cue.Value
}

// New returns a source that loads the CUE package in dir.
func New(dir string) *Source {
	return &Source{dir: dir}
}

// FromValue returns a source reading an already compiled value.
func FromValue(v cue.Value) *Source {
	return &Source{value: &v}
}

// Name implements source.ModelSource.
func (s *Source) Name() string { return "cue" }

// Definitions implements source.ModelSource.
func (s *Source) Definitions(ctx context.Context) ([]model.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, err := s.load()
	if err != nil {
		return nil, err
	}
	return definitions(val)
}

func (s *Source) load() (cue.Value, error) {
	if s.value != nil {
		if err := s.value.Err(); err != nil {
			return cue.Value{}, fmt.Errorf("evaluating CUE: %w", err)
		}
		return *s.value, nil
	}
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return cue.Value{}, fmt.Errorf("%w: %s does not exist", source.ErrNoSource, s.dir)
	}

	insts := load.Instances([]string{"."}, &load.Config{Dir: s.dir})
	if len(insts) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances found in %s", s.dir)
	}
	if err := insts[0].Err; err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE: %w", err)
	}
	val := cuecontext.New().BuildInstance(insts[0])
	if err := val.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("building CUE: %w", err)
	}
	return val, nil
}

// definitions reads every definition carrying a concrete tablename.
func definitions(val cue.Value) ([]model.Definition, error) {
	iter, err := val.Fields(cue.Definitions(true))
	if err != nil {
		return nil, fmt.Errorf("iterating definitions: %w", err)
	}
	var defs []model.Definition
	for iter.Next() {
		sel := iter.Selector()
		if !sel.IsDefinition() {
			continue
		}
		defVal := iter.Value()
		table, ok := stringAt(defVal, "tablename")
		if !ok {
			continue
		}
		def := model.Definition{Name: strings.TrimPrefix(sel.String(), "#"), Table: table}

		fields, err := defVal.Fields()
		if err != nil {
			return nil, fmt.Errorf("%s: iterating fields: %w", def.Name, err)
		}
		for fields.Next() {
			name := fields.Selector().String()
			fv := fields.Value()
			kind, _ := stringAt(fv, "kind")
			switch kind {
			case "column":
				def.Columns = append(def.Columns, column(name, fv))
			case "relationship":
				if a, ok := association(name, fv); ok {
					def.Associations = append(def.Associations, a)
				}
			}
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func column(name string, v cue.Value) model.ColumnDecl {
	c := model.ColumnDecl{Name: name}
	c.Type, _ = stringAt(v, "type")
	if n, err := lookup(v, "length").Int64(); err == nil {
		c.Length = int(n)
	}
	c.PrimaryKey, _ = boolAt(v, "primary_key")
	if b, ok := boolAt(v, "nullable"); ok {
		c.Nullable = &b
	}
	c.Unique, _ = boolAt(v, "unique")
	c.ForeignKey, _ = stringAt(v, "foreign_key")
	if d := lookup(v, "default"); d.Exists() && d.IsConcrete() {
		if s, err := d.String(); err == nil {
			c.Default = s
		} else {
			c.Default = fmt.Sprint(d)
		}
	}
	return c
}

func association(name string, v cue.Value) (model.Association, bool) {
	target, ok := stringAt(v, "target")
	if !ok {
		return model.Association{}, false
	}
	a := model.Association{Name: name, Target: target}
	if inv, ok := stringAt(v, "backref"); ok {
		a.Inverse = inv
	} else if inv, ok := stringAt(v, "back_populates"); ok {
		a.Inverse = inv
	}
	a.JoinTable, _ = stringAt(v, "secondary")
	return a, true
}

// lookup returns the field at path, resolved to its default when it has one.
func lookup(v cue.Value, path string) cue.Value {
	f := v.LookupPath(cue.ParsePath(path))
	if d, ok := f.Default(); ok {
		return d
	}
	return f
}

func stringAt(v cue.Value, path string) (string, bool) {
	s, err := lookup(v, path).String()
	if err != nil {
		return "", false
	}
	return s, true
}

func boolAt(v cue.Value, path string) (bool, bool) {
	b, err := lookup(v, path).Bool()
	if err != nil {
		return false, false
	}
	return b, true
}
