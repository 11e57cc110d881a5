package emit

import (
	"fmt"
	"go/token"
	"path"
	"strings"

	"github.com/matthewbaird/scaffold/internal/analyze"
	"github.com/matthewbaird/scaffold/internal/model"
)

// listColumnMax caps the columns shown in list views.
const listColumnMax = 5

type formField struct {
	Name  string
	Label string
	Input string // suffix of a web.Input constant
	Rules []string
}

type formsData struct {
	Package string
	Web     string
	Noun    string
	Table   string
	Fields  []formField
}

type routeChild struct {
	Noun       string
	Title      string
	Table      string
	Var        string
	Field      string
	Handler    string
	OwnerField string
}

type routesData struct {
	Package      string
	Web          string
	Noun         string
	Title        string
	Plural       string
	Table        string
	PK           string
	OwnerField   string
	Dependent    bool
	ParentRoutes []string
	Links        []string
	Routes       []Route
	Children     []routeChild
}

type blueprintData struct {
	Package string
	Web     string
	Noun    string
	Table   string
}

type column struct {
	Name  string
	Label string
}

type listData struct {
	Title     string
	Plural    string
	Table     string
	PK        string
	Dependent bool
	Parents   string
	Columns   []column
	ColSpan   int
}

type formPageData struct {
	Noun      string
	Title     string
	Plural    string
	Table     string
	Dependent bool
	Parents   string
}

type viewChild struct {
	Title    string
	Plural   string
	Table    string
	Singular string
	Var      string
	PK       string
	Display  string
}

type viewData struct {
	Title    string
	Plural   string
	Table    string
	PK       string
	Children []viewChild
}

type macroData struct {
	Plural string
	Fields []column
}

type baseLink struct {
	Table string
	Label string
}

type baseData struct {
	Title string
	Links []baseLink
}

type registryImport struct {
	Package string
	Path    string
}

type registryData struct {
	Web     string
	Imports []registryImport
}

// names groups the spellings of an entity used across artifacts.
type names struct {
	noun   string // "order item"
	title  string // "Order Item"
	plural string // "Order Items"
}

func nameOf(e *model.Entity) names {
	title := model.Label(model.Snake(e.Name))
	return names{noun: strings.ToLower(title), title: title, plural: model.Label(e.Table)}
}

// PackageName is the Go package name of the entity's generated directory.
func PackageName(table string) string {
	p := strings.ToLower(strings.ReplaceAll(table, "_", ""))
	if token.IsKeyword(p) {
		p += "pkg"
	}
	return p
}

// reservedVars are identifiers the generated handlers already use.
var reservedVars = map[string]bool{
	"app": true, "data": true, "err": true, "h": true, "id": true, "item": true,
	"items": true, "ok": true, "r": true, "rec": true, "sub": true, "w": true,
	"where": true, "web": true, "chi": true, "http": true, "table": true,
}

// childVar is a collision-free variable (and template key) for a child collection.
func childVar(table string) string {
	v := model.Camel(table)
	if reservedVars[v] || token.IsKeyword(v) {
		v += "List"
	}
	return v
}

func childHandler(c analyze.Child) string {
	return "add" + model.Pascal(c.Singular())
}

func inputKind(t model.SemanticType) string {
	switch t {
	case model.TypeInteger, model.TypeFloat:
		return "Number"
	case model.TypeNumeric:
		return "Decimal"
	case model.TypeBoolean:
		return "Checkbox"
	case model.TypeDate:
		return "Date"
	case model.TypeDateTime:
		return "DateTime"
	case model.TypeText:
		return "TextArea"
	default:
		return "Text"
	}
}

// formFields builds one rule set per user-editable field.
func formFields(e *model.Entity) []formField {
	var out []formField
	for _, f := range e.Fields {
		if f.SkipInForm() || f.CreationTimestamp() {
			continue
		}
		ff := formField{Name: f.Name, Label: model.Label(f.Name), Input: inputKind(f.Type)}
		switch {
		case f.Type == model.TypeBoolean:
			ff.Rules = append(ff.Rules, "web.Optional()")
		case !f.Nullable:
			ff.Rules = append(ff.Rules, "web.Required()")
		default:
			ff.Rules = append(ff.Rules, "web.Optional()")
		}
		if f.Type == model.TypeString && f.MaxLength > 0 {
			ff.Rules = append(ff.Rules, fmt.Sprintf("web.MaxLength(%d)", f.MaxLength))
		}
		name := strings.ToLower(f.Name)
		switch {
		case strings.HasSuffix(name, "email") || strings.Contains(name, "email_address"):
			ff.Input = "Email"
			ff.Rules = append(ff.Rules, "web.Email()")
		case strings.HasSuffix(name, "url") || strings.Contains(name, "website"):
			ff.Input = "URL"
			ff.Rules = append(ff.Rules, "web.URL()")
		case strings.HasSuffix(name, "password") || strings.Contains(name, "pwd"):
			ff.Input = "Password"
		}
		out = append(out, ff)
	}
	return out
}

// parents lists the entities a dependent entity links to, excluding itself.
func parents(s *model.Schema, e *model.Entity) []*model.Entity {
	var out []*model.Entity
	seen := map[string]bool{}
	for _, l := range e.Links {
		p := s.ByTable(l.TargetTable)
		if p == nil || p == e || seen[p.Table] {
			continue
		}
		seen[p.Table] = true
		out = append(out, p)
	}
	return out
}

// parentNouns names the parents for user-facing text, falling back to the
// linked table names when the parents are not in the schema.
func parentNouns(s *model.Schema, e *model.Entity) string {
	var nouns []string
	for _, p := range parents(s, e) {
		nouns = append(nouns, nameOf(p).noun)
	}
	if len(nouns) == 0 {
		for _, l := range e.Links {
			nouns = append(nouns, strings.ToLower(model.Label(model.Singularize(l.TargetTable))))
		}
	}
	if len(nouns) == 0 {
		return "parent"
	}
	return strings.Join(nouns, " or ")
}

func (em *Emitter) web() string { return path.Join(em.opts.AppModule, "internal", "web") }

func (em *Emitter) formsData(e *model.Entity) formsData {
	return formsData{
		Package: PackageName(e.Table),
		Web:     em.web(),
		Noun:    nameOf(e).noun,
		Table:   e.Table,
		Fields:  formFields(e),
	}
}

func (em *Emitter) routesData(s *model.Schema, e *model.Entity, children []analyze.Child) routesData {
	n := nameOf(e)
	d := routesData{
		Package:    PackageName(e.Table),
		Web:        em.web(),
		Noun:       n.noun,
		Title:      n.title,
		Plural:     n.plural,
		Table:      e.Table,
		PK:         e.PrimaryKey,
		OwnerField: e.OwnerField,
		Dependent:  e.Dependent(),
		Routes:     Routes(e, children),
	}
	if d.Dependent {
		for _, p := range parents(s, e) {
			d.ParentRoutes = append(d.ParentRoutes, fmt.Sprintf("/%s/{%s}/add-%s", p.Table, p.PrimaryKey, model.Singularize(e.Table)))
		}
		for _, l := range e.Links {
			d.Links = append(d.Links, l.Field)
		}
	}
	for _, c := range children {
		cn := nameOf(c.Entity)
		d.Children = append(d.Children, routeChild{
			Noun:       cn.noun,
			Title:      cn.title,
			Table:      c.Entity.Table,
			Var:        childVar(c.Entity.Table),
			Field:      c.Link.Field,
			Handler:    childHandler(c),
			OwnerField: c.Entity.OwnerField,
		})
	}
	return d
}

func (em *Emitter) blueprintData(e *model.Entity) blueprintData {
	return blueprintData{Package: PackageName(e.Table), Web: em.web(), Noun: nameOf(e).noun, Table: e.Table}
}

func listColumns(e *model.Entity) []column {
	var cols []column
	for _, name := range e.DisplayFields(listColumnMax) {
		cols = append(cols, column{Name: name, Label: model.Label(name)})
	}
	return cols
}

func listPage(s *model.Schema, e *model.Entity) listData {
	n := nameOf(e)
	cols := listColumns(e)
	return listData{
		Title:     n.title,
		Plural:    n.plural,
		Table:     e.Table,
		PK:        e.PrimaryKey,
		Dependent: e.Dependent(),
		Parents:   parentNouns(s, e),
		Columns:   cols,
		ColSpan:   len(cols) + 1,
	}
}

func formPage(s *model.Schema, e *model.Entity) formPageData {
	n := nameOf(e)
	return formPageData{
		Noun:      n.noun,
		Title:     n.title,
		Plural:    n.plural,
		Table:     e.Table,
		Dependent: e.Dependent(),
		Parents:   parentNouns(s, e),
	}
}

func viewPage(e *model.Entity, children []analyze.Child) viewData {
	n := nameOf(e)
	d := viewData{Title: n.title, Plural: n.plural, Table: e.Table, PK: e.PrimaryKey}
	for _, c := range children {
		cn := nameOf(c.Entity)
		display := c.Entity.PrimaryKey
		if f := c.Entity.DisplayFields(1); len(f) > 0 {
			display = f[0]
		}
		d.Children = append(d.Children, viewChild{
			Title:    cn.title,
			Plural:   cn.plural,
			Table:    c.Entity.Table,
			Singular: c.Singular(),
			Var:      childVar(c.Entity.Table),
			PK:       c.Entity.PrimaryKey,
			Display:  display,
		})
	}
	return d
}

func macros(e *model.Entity) macroData {
	d := macroData{Plural: nameOf(e).plural}
	for _, f := range e.Fields {
		d.Fields = append(d.Fields, column{Name: f.Name, Label: model.Label(f.Name)})
	}
	return d
}

func (em *Emitter) baseData(s *model.Schema) baseData {
	d := baseData{Title: em.opts.AppName}
	for _, e := range s.Entities() {
		d.Links = append(d.Links, baseLink{Table: e.Table, Label: nameOf(e).plural})
	}
	return d
}

func (em *Emitter) registryData(s *model.Schema) registryData {
	d := registryData{Web: em.web()}
	for _, e := range s.Entities() {
		d.Imports = append(d.Imports, registryImport{
			Package: PackageName(e.Table),
			Path:    path.Join(em.opts.AppModule, e.Table),
		})
	}
	return d
}
