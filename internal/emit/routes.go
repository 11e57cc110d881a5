package emit

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/scaffold/internal/analyze"
	"github.com/matthewbaird/scaffold/internal/model"
)

// Route is one endpoint of an entity's route module, relative to its
// /<table> mount point. Method is the suffix of an http.Method constant.
type Route struct {
	Method  string
	Pattern string
	Handler string
}

// Routes is the route table of e. It drives both the rendered route
// module and VerifyRoutes. Dependent entities get no create route.
func Routes(e *model.Entity, children []analyze.Child) []Route {
	item := "/{" + e.PrimaryKey + "}"
	routes := []Route{{Method: "Get", Pattern: "/", Handler: "list"}}
	if !e.Dependent() {
		routes = append(routes,
			Route{Method: "Get", Pattern: "/create", Handler: "create"},
			Route{Method: "Post", Pattern: "/create", Handler: "create"},
		)
	}
	routes = append(routes,
		Route{Method: "Get", Pattern: item, Handler: "view"},
		Route{Method: "Get", Pattern: item + "/edit", Handler: "edit"},
		Route{Method: "Post", Pattern: item + "/edit", Handler: "edit"},
		Route{Method: "Post", Pattern: item + "/delete", Handler: "remove"},
	)
	for _, c := range children {
		p := item + "/add-" + c.Singular()
		h := childHandler(c)
		routes = append(routes,
			Route{Method: "Get", Pattern: p, Handler: h},
			Route{Method: "Post", Pattern: p, Handler: h},
		)
	}
	return routes
}

// VerifyRoutes mounts every entity's route table on one chi router and
// returns the resulting "METHOD /path" manifest, sorted. Conflicting
// mounts and malformed patterns are reported as errors.
func VerifyRoutes(s *model.Schema) ([]string, error) {
	root := chi.NewRouter()
	for _, e := range s.Entities() {
		if err := mount(root, "/"+e.Table, Routes(e, analyze.Children(s, e))); err != nil {
			return nil, fmt.Errorf("%s routes: %w", e.Name, err)
		}
	}

	var manifest []string
	walk := func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		manifest = append(manifest, method+" "+route)
		return nil
	}
	if err := chi.Walk(root, walk); err != nil {
		return nil, fmt.Errorf("walking routes: %w", err)
	}
	sort.Strings(manifest)
	return manifest, nil
}

var noop = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

// mount registers routes on a subrouter and mounts it at prefix. chi
// panics on conflicts; the panic is returned as an error.
func mount(root chi.Router, prefix string, routes []Route) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("mounting %s: %v", prefix, p)
		}
	}()
	sub := chi.NewRouter()
	for _, rt := range routes {
		sub.Method(strings.ToUpper(rt.Method), rt.Pattern, noop)
	}
	root.Mount(prefix, sub)
	return nil
}
