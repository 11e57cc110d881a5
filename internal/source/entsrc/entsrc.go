// Package entsrc reads entity definitions from compiled ent schemas by
// reflecting over their field and edge descriptors.
package entsrc

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"

	"github.com/matthewbaird/scaffold/internal/model"
	"github.com/matthewbaird/scaffold/internal/source"
)

// Source is a provider over a fixed set of ent schemas.
type Source struct {
	schemas []ent.Interface
}

// New returns a source for the given schemas, in order.
func New(schemas ...ent.Interface) *Source {
	return &Source{schemas: schemas}
}

// Name implements source.ModelSource.
func (s *Source) Name() string { return "ent" }

// schemaInfo is one schema with its resolved names and edges.
type schemaInfo struct {
	name   string
	table  string
	schema ent.Interface
	edges  []*edge.Descriptor
}

// Definitions implements source.ModelSource.
func (s *Source) Definitions(ctx context.Context) ([]model.Definition, error) {
	if len(s.schemas) == 0 {
		return nil, fmt.Errorf("%w: no ent schemas registered", source.ErrNoSource)
	}
	infos := make([]*schemaInfo, 0, len(s.schemas))
	byName := make(map[string]*schemaInfo, len(s.schemas))
	for _, sc := range s.schemas {
		info := &schemaInfo{name: TypeName(sc), schema: sc}
		info.table = tableName(sc, info.name)
		for _, e := range sc.Edges() {
			info.edges = append(info.edges, e.Descriptor())
		}
		infos = append(infos, info)
		byName[info.name] = info
	}

	defs := make([]model.Definition, 0, len(infos))
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		def, err := definition(info, byName)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// TypeName is the Go type name of a schema.
func TypeName(sc ent.Interface) string {
	t := reflect.TypeOf(sc)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func tableName(sc ent.Interface, name string) string {
	for _, a := range sc.Annotations() {
		switch ann := a.(type) {
		case entsql.Annotation:
			if ann.Table != "" {
				return ann.Table
			}
		case *entsql.Annotation:
			if ann != nil && ann.Table != "" {
				return ann.Table
			}
		}
	}
	return model.Pluralize(name)
}

func definition(info *schemaInfo, byName map[string]*schemaInfo) (model.Definition, error) {
	def := model.Definition{Name: info.name, Table: info.table}

	var fields []ent.Field
	for _, m := range info.schema.Mixin() {
		fields = append(fields, m.Fields()...)
	}
	fields = append(fields, info.schema.Fields()...)

	hasID := false
	for _, f := range fields {
		d := f.Descriptor()
		if d.Err != nil {
			return model.Definition{}, fmt.Errorf("%s.%s: %w", info.name, d.Name, d.Err)
		}
		c := column(d)
		if d.Name == "id" {
			hasID = true
			c.PrimaryKey = true
		}
		def.Columns = append(def.Columns, c)
	}
	if !hasID {
		no := false
		id := model.ColumnDecl{Name: "id", Type: "Integer", PrimaryKey: true, Nullable: &no}
		def.Columns = append([]model.ColumnDecl{id}, def.Columns...)
	}

	for _, e := range info.edges {
		target := targetTable(e.Type, byName)
		if e.Unique && e.Field != "" {
			for i := range def.Columns {
				if def.Columns[i].Name == e.Field {
					def.Columns[i].ForeignKey = target + ".id"
				}
			}
		}
		def.Associations = append(def.Associations, association(info, e, byName))
	}
	return def, nil
}

func column(d *field.Descriptor) model.ColumnDecl {
	nullable := d.Optional || d.Nillable
	c := model.ColumnDecl{
		Name:     d.Name,
		Type:     columnType(d),
		Nullable: &nullable,
		Unique:   d.Unique,
	}
	if c.Type == "String" && d.Size > 0 {
		c.Length = d.Size
	}
	c.Default = defaultExpr(d.Default)
	return c
}

func columnType(d *field.Descriptor) string {
	if d.Info == nil {
		return "String"
	}
	switch t := d.Info.Type; {
	case t == field.TypeBool:
		return "Boolean"
	case t == field.TypeTime:
		return "DateTime"
	case t == field.TypeFloat32 || t == field.TypeFloat64:
		return "Float"
	case t.Numeric():
		return "Integer"
	case t == field.TypeString && d.Size == math.MaxInt32:
		return "Text"
	case t == field.TypeJSON || t == field.TypeBytes:
		return "Text"
	default:
		return "String"
	}
}

var timeNow = reflect.ValueOf(time.Now).Pointer()

// defaultExpr renders a field default. time.Now is the creation marker.
func defaultExpr(v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func {
		if rv.Pointer() == timeNow {
			return "now"
		}
		return "func"
	}
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	default:
		return fmt.Sprint(x)
	}
}

func targetTable(typ string, byName map[string]*schemaInfo) string {
	if info, ok := byName[typ]; ok {
		return info.table
	}
	return model.Pluralize(typ)
}

// association converts an edge. An edge is many-to-many when it goes
// through an edge schema or when neither it nor its counterpart is unique.
func association(owner *schemaInfo, e *edge.Descriptor, byName map[string]*schemaInfo) model.Association {
	a := model.Association{Name: e.Name, Target: e.Type, Inverse: e.RefName}
	other := counterpart(owner, e, byName)
	if a.Inverse == "" && other != nil {
		a.Inverse = other.Name
	}
	switch {
	case e.Through != nil:
		a.JoinTable = e.Through.N
	case !e.Unique && other != nil && !other.Unique:
		if e.Inverse {
			a.JoinTable = model.Snake(e.Type) + "_" + e.RefName
		} else {
			a.JoinTable = model.Snake(owner.name) + "_" + e.Name
		}
	}
	return a
}

// counterpart finds the edge on the target schema that pairs with e.
func counterpart(owner *schemaInfo, e *edge.Descriptor, byName map[string]*schemaInfo) *edge.Descriptor {
	target, ok := byName[e.Type]
	if !ok {
		return nil
	}
	for _, o := range target.edges {
		if o.Type != owner.name {
			continue
		}
		if e.Inverse && o.Name == e.RefName {
			return o
		}
		if !e.Inverse && o.Inverse && o.RefName == e.Name {
			return o
		}
	}
	return nil
}
