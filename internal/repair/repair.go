// Package repair inserts missing foreign-key columns into CUE entity
// sources, and optionally the owner entity when the models lack one.
package repair

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/matthewbaird/scaffold/internal/model"
	"github.com/matthewbaird/scaffold/internal/source/textsrc"
)

// Options configures Apply.
type Options struct {
	// EnsureOwner appends an owner entity to the first source file when no
	// entity maps to OwnerTable.
	EnsureOwner bool
	OwnerTable  string // defaults to "users"
	Logger      *log.Logger
}

// Insertion is one column written into a source file.
type Insertion struct {
	File        string
	Entity      string
	Column      string
	TargetTable string
	Line        int // line of the new declaration in the rewritten file
}

// Result summarizes what Apply changed.
type Result struct {
	Inserted   []Insertion
	OwnerAdded bool
	Files      []string // files rewritten, in write order
}

// Changed reports whether any file was rewritten.
func (r Result) Changed() bool { return len(r.Files) > 0 }

// Apply fixes every missing foreign key recorded in s by editing the *.cue
// files in dir. Files are processed in sorted order and each modified file
// is written once.
func Apply(dir string, s *model.Schema, opts Options) (Result, error) {
	if opts.OwnerTable == "" {
		opts.OwnerTable = "users"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	pending := map[string][]model.MissingForeignKey{}
	for _, e := range s.Entities() {
		if len(e.MissingForeignKeys) > 0 {
			pending[e.Name] = e.MissingForeignKeys
		}
	}
	addOwner := opts.EnsureOwner && s.ByTable(opts.OwnerTable) == nil

	var res Result
	if len(pending) == 0 && !addOwner {
		return res, nil
	}

	files, err := textsrc.Files(dir)
	if err != nil {
		return res, err
	}
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return res, fmt.Errorf("reading %s: %w", path, err)
		}
		src := string(data)
		blocks, errs := textsrc.ParseFile(path, src)
		for _, e := range errs {
			logger.Printf("warning: repair skipped unparseable entity: %v", e)
		}

		ed := newEdit(src)
		for _, b := range blocks {
			missing, ok := pending[b.Name]
			if !ok || b.Table == "" {
				continue
			}
			cols, err := textsrc.Declarations(src, b.BodyStart, b.BodyEnd, textsrc.DeclColumn)
			if err != nil {
				logger.Printf("warning: repair skipped entity %s: %v", b.Name, err)
				continue
			}
			delete(pending, b.Name)
			for _, ins := range insertColumns(ed, b, cols, missing) {
				ins.File = path
				res.Inserted = append(res.Inserted, ins)
			}
		}
		if i == 0 && addOwner {
			ed.appendText(ownerBlock(opts.OwnerTable, qualifierOf(blocks)))
			res.OwnerAdded = true
		}
		if !ed.changed() {
			continue
		}
		out, lines := ed.apply()
		for j := range res.Inserted {
			if res.Inserted[j].File == path {
				res.Inserted[j].Line = lines[res.Inserted[j].Line]
			}
		}
		if err := os.WriteFile(path, []byte(out), 0644); err != nil {
			return res, fmt.Errorf("writing %s: %w", path, err)
		}
		res.Files = append(res.Files, path)
	}

	for name := range pending {
		logger.Printf("warning: repair found no source block for entity %s", name)
	}
	return res, nil
}

// insertColumns queues one declaration per missing key after the last of
// cols, every column declared in b. Line holds the edit id until Apply
// rewrites the file.
func insertColumns(ed *edit, b textsrc.Block, cols []textsrc.Decl, missing []model.MissingForeignKey) []Insertion {
	anchor, indent, qual := b.TableLine, "", b.Qualifier
	if anchor == 0 {
		anchor = b.StartLine
	}
	seen := map[string]bool{}
	if n := len(cols); n > 0 {
		last := cols[n-1]
		for _, c := range cols {
			seen[c.Name] = true
			if c.EndLine > last.EndLine {
				last = c
			}
		}
		anchor, indent, qual = last.EndLine, last.Indent, last.Qualifier
	} else {
		indent = leadingSpace(ed.line(anchor))
		if indent == "" {
			indent = "\t"
		}
	}

	var out []Insertion
	for _, m := range missing {
		if seen[m.ExpectedColumn] {
			continue
		}
		seen[m.ExpectedColumn] = true
		line := fmt.Sprintf(`%s%s: %s#Integer & {foreign_key: "%s.id", nullable: false}`,
			indent, m.ExpectedColumn, qual, m.TargetTable)
		id := ed.insertAfter(anchor, line)
		out = append(out, Insertion{
			Entity:      b.Name,
			Column:      m.ExpectedColumn,
			TargetTable: m.TargetTable,
			Line:        id,
		})
	}
	return out
}

func ownerBlock(table, qual string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%s: %s#Model & {\n", model.Pascal(model.Singularize(table)), qual)
	fmt.Fprintf(&b, "\ttablename: %q\n\n", table)
	fmt.Fprintf(&b, "\tid:            %s#Integer & {primary_key: true}\n", qual)
	fmt.Fprintf(&b, "\tusername:      %s#String & {length: 64, unique: true, nullable: false}\n", qual)
	fmt.Fprintf(&b, "\tpassword_hash: %s#String & {length: 128}\n", qual)
	b.WriteString("}\n")
	return b.String()
}

// qualifierOf picks the package qualifier the file already uses.
func qualifierOf(blocks []textsrc.Block) string {
	for _, b := range blocks {
		if b.Qualifier != "" {
			return b.Qualifier
		}
	}
	return ""
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// edit collects line insertions against the original text of one file.
type edit struct {
	lines   []string
	inserts map[int][]pendingLine // keyed by 1-based anchor line
	tail    string
	next    int
}

type pendingLine struct {
	id   int
	text string
}

func newEdit(src string) *edit {
	return &edit{lines: strings.Split(src, "\n"), inserts: map[int][]pendingLine{}}
}

func (e *edit) line(n int) string {
	if n < 1 || n > len(e.lines) {
		return ""
	}
	return e.lines[n-1]
}

// insertAfter queues text after line n and returns an id that apply
// resolves to the text's final line number.
func (e *edit) insertAfter(n int, text string) int {
	e.next++
	e.inserts[n] = append(e.inserts[n], pendingLine{id: e.next, text: text})
	return e.next
}

func (e *edit) appendText(text string) { e.tail += text }

func (e *edit) changed() bool { return len(e.inserts) > 0 || e.tail != "" }

// apply returns the rewritten text and the final line of every queued
// insertion, keyed by insertion id.
func (e *edit) apply() (string, map[int]int) {
	final := map[int]int{}
	out := make([]string, 0, len(e.lines)+len(e.inserts))
	for i, l := range e.lines {
		out = append(out, l)
		for _, p := range e.inserts[i+1] {
			out = append(out, p.text)
			final[p.id] = len(out)
		}
	}
	text := strings.Join(out, "\n")
	if e.tail != "" {
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		text += "\n" + e.tail
	}
	return text, final
}
