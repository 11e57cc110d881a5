// Package source defines the ModelSource capability and the Extractor that
// chooses between a live provider and a structural fallback.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/matthewbaird/scaffold/internal/model"
)

// ErrNoSource is returned when the entity source location is missing or
// holds no definitions. It is fatal for a run.
var ErrNoSource = errors.New("no entity source")

// ModelSource yields raw entity definitions from one kind of input.
type ModelSource interface {
	// Name identifies the provider in logs ("cue", "text", "ent", "sqlite").
	Name() string

	// Definitions reads every entity definition the provider can see.
	Definitions(ctx context.Context) ([]model.Definition, error)
}

// Extractor reads definitions from Primary and falls back to Fallback when
// the primary provider fails for any reason.
type Extractor struct {
	Primary  ModelSource
	Fallback ModelSource
	Logger   *log.Logger
}

// Extract returns the definitions and the name of the provider that produced them.
func (x *Extractor) Extract(ctx context.Context) ([]model.Definition, string, error) {
	logger := x.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if x.Primary == nil {
		return nil, "", fmt.Errorf("extractor: no primary source configured")
	}

	defs, err := x.Primary.Definitions(ctx)
	if err == nil {
		return defs, x.Primary.Name(), nil
	}
	if errors.Is(err, ErrNoSource) || x.Fallback == nil {
		return nil, x.Primary.Name(), fmt.Errorf("%s source: %w", x.Primary.Name(), err)
	}

	logger.Printf("warning: %s load failed: %v; falling back to %s parser", x.Primary.Name(), err, x.Fallback.Name())
	defs, ferr := x.Fallback.Definitions(ctx)
	if ferr != nil {
		return nil, x.Fallback.Name(), fmt.Errorf("%s source: %w", x.Fallback.Name(), ferr)
	}
	return defs, x.Fallback.Name(), nil
}
