package emit

import (
	"bytes"
	"embed"
	"fmt"
	"go/format"
	"reflect"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = template.FuncMap{
	"join": strings.Join,
}

// artifact is one generator template bound to its data type T. The
// template's references are checked against T when it is parsed.
type artifact[T any] struct {
	name     string
	tmpl     *template.Template
	goSource bool
}

// parseArtifact parses text with [[ ]] delimiters, leaving {{ }} to the
// generated HTML, and validates it against T.
func parseArtifact[T any](name, text string) (*artifact[T], error) {
	tmpl, err := template.New(name).
		Delims("[[", "]]").
		Funcs(funcs).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	var zero T
	if err := checkContract(name, tmpl.Tree, reflect.TypeOf(zero)); err != nil {
		return nil, err
	}
	return &artifact[T]{name: name, tmpl: tmpl, goSource: strings.HasSuffix(name, ".go.tmpl")}, nil
}

func loadArtifact[T any](name string) (*artifact[T], error) {
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", name, err)
	}
	return parseArtifact[T](name, string(data))
}

// load is loadArtifact collecting the error into errs.
func load[T any](errs *[]error, name string) *artifact[T] {
	a, err := loadArtifact[T](name)
	if err != nil {
		*errs = append(*errs, err)
	}
	return a
}

// render executes the template. Go output is formatted; when formatting
// fails the unformatted bytes are returned along with the error.
func (a *artifact[T]) render(data T) ([]byte, error) {
	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template %s: %w", a.name, err)
	}
	if !a.goSource {
		return buf.Bytes(), nil
	}
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.Bytes(), fmt.Errorf("formatting %s output: %w", a.name, err)
	}
	return formatted, nil
}
