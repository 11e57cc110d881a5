package emit

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"text/template/parse"
)

// ContractError reports a template reference that the artifact's data type
// does not provide.
type ContractError struct {
	Artifact string
	Location string // template:line:col
	Variable string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s: template references %s, which its data does not provide", e.Artifact, e.Location, e.Variable)
}

// ContractErrors flattens err into the contract violations it carries.
func ContractErrors(err error) []*ContractError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*ContractError); ok {
		return []*ContractError{ce}
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*ContractError
		for _, e := range j.Unwrap() {
			out = append(out, ContractErrors(e)...)
		}
		return out
	}
	return ContractErrors(errors.Unwrap(err))
}

// checker walks a parse tree tracking the type of dot and of declared
// variables. A nil type means "unknown" and disables checks below it.
type checker struct {
	artifact string
	tree     *parse.Tree
	vars     map[string]reflect.Type
	errs     []error
}

// checkContract verifies that every field reference in tree resolves
// against root.
func checkContract(artifact string, tree *parse.Tree, root reflect.Type) error {
	if tree == nil {
		return nil
	}
	c := &checker{artifact: artifact, tree: tree, vars: map[string]reflect.Type{"$": root}}
	c.walk(tree.Root, root)
	return errors.Join(c.errs...)
}

func (c *checker) walk(node parse.Node, dot reflect.Type) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			c.walk(child, dot)
		}
	case *parse.ActionNode:
		c.pipe(n.Pipe, dot)
	case *parse.IfNode:
		c.pipe(n.Pipe, dot)
		c.walk(n.List, dot)
		c.walk(n.ElseList, dot)
	case *parse.WithNode:
		t := c.pipe(n.Pipe, dot)
		c.walk(n.List, t)
		c.walk(n.ElseList, dot)
	case *parse.RangeNode:
		t := elem(c.pipe(n.Pipe, dot))
		switch decl := n.Pipe.Decl; len(decl) {
		case 1:
			c.vars[decl[0].Ident[0]] = t
		case 2:
			c.vars[decl[0].Ident[0]] = nil
			c.vars[decl[1].Ident[0]] = t
		}
		c.walk(n.List, t)
		c.walk(n.ElseList, dot)
	case *parse.TemplateNode:
		c.pipe(n.Pipe, dot)
	}
}

// pipe checks every command and returns the pipeline's type when it is a
// single plain reference.
func (c *checker) pipe(p *parse.PipeNode, dot reflect.Type) reflect.Type {
	if p == nil {
		return nil
	}
	var result reflect.Type
	for _, cmd := range p.Cmds {
		var last reflect.Type
		for _, arg := range cmd.Args {
			last = c.arg(arg, dot)
		}
		if len(cmd.Args) == 1 {
			result = last
		} else {
			result = nil
		}
	}
	if len(p.Cmds) != 1 {
		result = nil
	}
	for _, v := range p.Decl {
		c.vars[v.Ident[0]] = result
	}
	return result
}

func (c *checker) arg(node parse.Node, dot reflect.Type) reflect.Type {
	switch n := node.(type) {
	case *parse.DotNode:
		return dot
	case *parse.FieldNode:
		return c.resolve(n, "", dot, n.Ident)
	case *parse.VariableNode:
		base, ok := c.vars[n.Ident[0]]
		if !ok {
			return nil
		}
		return c.resolve(n, n.Ident[0], base, n.Ident[1:])
	case *parse.PipeNode:
		return c.pipe(n, dot)
	case *parse.ChainNode:
		c.arg(n.Node, dot)
	}
	return nil
}

func (c *checker) resolve(node parse.Node, prefix string, typ reflect.Type, idents []string) reflect.Type {
	for i, name := range idents {
		if typ == nil {
			return nil
		}
		next, ok := member(typ, name)
		if !ok {
			loc, _ := c.tree.ErrorContext(node)
			c.errs = append(c.errs, &ContractError{
				Artifact: c.artifact,
				Location: loc,
				Variable: prefix + "." + strings.Join(idents[:i+1], "."),
			})
			return nil
		}
		typ = next
	}
	return typ
}

// member returns the type of t.name. Map elements and interface values are
// accepted with an unknown (nil) type when they cannot be narrowed.
func member(t reflect.Type, name string) (reflect.Type, bool) {
	if m, ok := t.MethodByName(name); ok {
		return result(m.Type), true
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		if f, ok := t.FieldByName(name); ok && f.IsExported() {
			return f.Type, true
		}
		if m, ok := reflect.PointerTo(t).MethodByName(name); ok {
			return result(m.Type), true
		}
	case reflect.Map:
		return t.Elem(), true
	case reflect.Interface:
		return nil, true
	}
	return nil, false
}

func result(fn reflect.Type) reflect.Type {
	if fn.NumOut() == 0 {
		return nil
	}
	return fn.Out(0)
}

// elem is the type range assigns to dot for a collection of type t.
func elem(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return t.Elem()
	case reflect.Int:
		return t
	}
	return nil
}
