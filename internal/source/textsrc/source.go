// Package textsrc reconstructs entity definitions from CUE model source
// text without evaluating it. It is the fallback when the live CUE load
// fails, and the parser the repair pass uses to locate declarations.
package textsrc

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matthewbaird/scaffold/internal/model"
	"github.com/matthewbaird/scaffold/internal/source"
)

// Source parses every *.cue file directly inside a directory.
type Source struct {
	dir    string
	logger *log.Logger
}

// New returns a text source for dir. Parse problems in individual blocks
// are reported to logger, which may be nil.
func New(dir string, logger *log.Logger) *Source {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Source{dir: dir, logger: logger}
}

// Name implements source.ModelSource.
func (s *Source) Name() string { return "text" }

// Definitions implements source.ModelSource. Blocks without a table marker
// are skipped silently.
func (s *Source) Definitions(ctx context.Context) ([]model.Definition, error) {
	files, err := Files(s.dir)
	if err != nil {
		return nil, err
	}
	var defs []model.Definition
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		blocks, errs := ParseFile(path, string(data))
		for _, e := range errs {
			s.logger.Printf("warning: skipping unparseable entity: %v", e)
		}
		for _, b := range blocks {
			if b.Table == "" {
				continue
			}
			defs = append(defs, b.Definition())
		}
	}
	return defs, nil
}

// Files lists the *.cue files directly inside dir in sorted order.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", source.ErrNoSource, dir)
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cue") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .cue files in %s", source.ErrNoSource, dir)
	}
	sort.Strings(files)
	return files, nil
}
