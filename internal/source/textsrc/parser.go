package textsrc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/matthewbaird/scaffold/internal/model"
)

// DeclKind distinguishes column declarations from associations.
type DeclKind int

const (
	DeclColumn DeclKind = iota
	DeclRelationship
)

// Decl is one column or association declaration inside an entity block.
type Decl struct {
	Kind        DeclKind
	Name        string
	Indent      string
	Qualifier   string // package qualifier of the constructor, e.g. "db."
	Constructor string // constructor name without qualifier, e.g. "#String"
	Text        string // declaration text after the colon
	StartLine   int    // 1-based, file relative
	EndLine     int
}

// Block is one entity definition found in a source file.
type Block struct {
	Name      string
	Table     string // "" when the block carries no table marker
	File      string
	Qualifier string // qualifier of the #Model reference
	StartLine int
	EndLine   int
	TableLine int
	BodyStart int // byte offsets of the text between the braces
	BodyEnd   int
	Columns   []Decl
	Relations []Decl
}

// simpleColumnMin is the match count below which the statement re-scan
// replaces the single-line matches outright. At or above it, the re-scan
// only contributes declarations the single-line pass could not see.
const simpleColumnMin = 3

var columnTypes = "Integer|BigInteger|SmallInteger|String|Text|Boolean|DateTime|Date|Float|Numeric|Column"

var (
	blockRe     = regexp.MustCompile(`(?m)^[ \t]*#(\w+)[ \t]*:[ \t]*((?:\w+\.)?)#\w*Model\w*\b[^{\n]*\{`)
	tableRe     = regexp.MustCompile(`(?m)^[ \t]*tablename[ \t]*:[ \t]*"(\w+)"`)
	columnRe    = regexp.MustCompile(`^([ \t]*)(\w+)[ \t]*:[ \t]*((?:\w+\.)?)(#(?:` + columnTypes + `))\b(.*)$`)
	relationRe  = regexp.MustCompile(`^([ \t]*)(\w+)[ \t]*:[ \t]*((?:\w+\.)?)(#Relationship)\b(.*)$`)
	lengthRe    = regexp.MustCompile(`\blength\s*:\s*(\d+)`)
	pkRe        = regexp.MustCompile(`\bprimary_key\s*:\s*true\b`)
	nullableRe  = regexp.MustCompile(`\bnullable\s*:\s*(true|false)\b`)
	uniqueRe    = regexp.MustCompile(`\bunique\s*:\s*true\b`)
	fkRe        = regexp.MustCompile(`\bforeign_key\s*:\s*"([^"]+)"`)
	defaultRe   = regexp.MustCompile(`\bdefault\s*:\s*([^,}\n]+)`)
	targetRe    = regexp.MustCompile(`\btarget\s*:\s*"(\w+)"`)
	backrefRe   = regexp.MustCompile(`\bbackref\s*:\s*"(\w+)"`)
	backPopRe   = regexp.MustCompile(`\bback_populates\s*:\s*"(\w+)"`)
	secondaryRe = regexp.MustCompile(`\bsecondary\s*:\s*"?(\w+)"?`)
	typeRe      = regexp.MustCompile(`\btype\s*:\s*"(\w+)"`)
)

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(src string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (li lineIndex) lineOf(off int) int {
	return sort.Search(len(li), func(i int) bool { return li[i] > off })
}

// ParseFile finds every entity block in src. Blocks without a table marker
// are returned with an empty Table; callers decide whether to skip them.
// A block whose brackets cannot be balanced is skipped and reported in errs.
func ParseFile(name, src string) (blocks []Block, errs []error) {
	lines := newLineIndex(src)
	for _, m := range blockRe.FindAllStringSubmatchIndex(src, -1) {
		b, err := parseBlock(name, src, lines, m)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: entity %s: %w", name, src[m[2]:m[3]], err))
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks, errs
}

func parseBlock(name, src string, lines lineIndex, m []int) (Block, error) {
	brace := m[1] - 1
	s := NewScanner(src)
	s.Seek(brace)
	if _, err := s.ReadBalanced(); err != nil {
		return Block{}, err
	}
	b := Block{
		Name:      src[m[2]:m[3]],
		Qualifier: src[m[4]:m[5]],
		File:      name,
		StartLine: lines.lineOf(m[0]),
		EndLine:   lines.lineOf(s.Pos() - 1),
	}
	bodyStart, bodyEnd := brace+1, s.Pos()-1
	b.BodyStart, b.BodyEnd = bodyStart, bodyEnd
	body := src[bodyStart:bodyEnd]
	if tm := tableRe.FindStringSubmatchIndex(body); tm != nil {
		b.Table = body[tm[2]:tm[3]]
		b.TableLine = lines.lineOf(bodyStart + tm[0])
	}

	cols, err := Declarations(src, bodyStart, bodyEnd, DeclColumn)
	if err != nil {
		return Block{}, err
	}
	b.Columns = simpleColumns(src, lines, bodyStart, bodyEnd)
	if len(b.Columns) < simpleColumnMin {
		b.Columns = cols
	} else {
		b.Columns = mergeDecls(b.Columns, cols)
	}
	rels, err := Declarations(src, bodyStart, bodyEnd, DeclRelationship)
	if err != nil {
		return Block{}, err
	}
	b.Relations = rels
	return b, nil
}

// simpleColumns matches single-line column declarations whose brackets
// balance on the same line.
func simpleColumns(src string, lines lineIndex, start, end int) []Decl {
	var out []Decl
	first := lines.lineOf(start)
	for ln := first; ln <= len(lines); ln++ {
		ls := lines[ln-1]
		if ls >= end {
			break
		}
		le := len(src)
		if ln < len(lines) {
			le = lines[ln] - 1
		}
		if ls < start {
			ls = start
		}
		if le > end {
			le = end
		}
		text := src[ls:le]
		m := columnRe.FindStringSubmatch(text)
		if m == nil || Depth(text) != 0 {
			continue
		}
		out = append(out, newDecl(DeclColumn, m, ln, ln))
	}
	return out
}

// mergeDecls adds the declarations of extra whose names base lacks and
// returns the result in source order.
func mergeDecls(base, extra []Decl) []Decl {
	seen := make(map[string]bool, len(base))
	for _, d := range base {
		seen[d.Name] = true
	}
	out := append([]Decl(nil), base...)
	for _, d := range extra {
		if !seen[d.Name] {
			seen[d.Name] = true
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
	return out
}

// Declarations re-scans src[start:end] statement by statement, extending
// each statement across lines until bracket depth returns to zero, and
// returns the declarations of the requested kind.
func Declarations(src string, start, end int, kind DeclKind) ([]Decl, error) {
	re := columnRe
	if kind == DeclRelationship {
		re = relationRe
	}
	s := NewScanner(src[:end])
	s.Seek(start)
	var out []Decl
	for s.Pos() < end {
		line := s.Line()
		text, err := s.ReadStatement()
		if err != nil {
			return nil, err
		}
		m := re.FindStringSubmatch(strings.ReplaceAll(text, "\n", " "))
		if m == nil {
			continue
		}
		d := newDecl(kind, m, line, line+strings.Count(text, "\n"))
		d.Text = strings.TrimSpace(text[strings.Index(text, ":")+1:])
		out = append(out, d)
	}
	return out, nil
}

func newDecl(kind DeclKind, m []string, startLine, endLine int) Decl {
	return Decl{
		Kind:        kind,
		Indent:      m[1],
		Name:        m[2],
		Qualifier:   m[3],
		Constructor: m[4],
		Text:        strings.TrimSpace(m[3] + m[4] + m[5]),
		StartLine:   startLine,
		EndLine:     endLine,
	}
}

// Column converts a column declaration into a raw column description.
func (d Decl) Column() model.ColumnDecl {
	c := model.ColumnDecl{
		Name:       d.Name,
		Type:       d.Constructor,
		PrimaryKey: pkRe.MatchString(d.Text),
		Unique:     uniqueRe.MatchString(d.Text),
	}
	if d.Constructor == "#Column" {
		if m := typeRe.FindStringSubmatch(d.Text); m != nil {
			c.Type = m[1]
		}
	}
	if m := lengthRe.FindStringSubmatch(d.Text); m != nil {
		c.Length, _ = strconv.Atoi(m[1])
	}
	if m := nullableRe.FindStringSubmatch(d.Text); m != nil {
		v := m[1] == "true"
		c.Nullable = &v
	}
	if m := fkRe.FindStringSubmatch(d.Text); m != nil {
		c.ForeignKey = m[1]
	}
	if m := defaultRe.FindStringSubmatch(d.Text); m != nil {
		c.Default = strings.TrimSpace(m[1])
	}
	return c
}

// Association converts a relationship declaration. ok is false when the
// declaration names no target entity.
func (d Decl) Association() (model.Association, bool) {
	m := targetRe.FindStringSubmatch(d.Text)
	if m == nil {
		return model.Association{}, false
	}
	a := model.Association{Name: d.Name, Target: m[1]}
	if m := backrefRe.FindStringSubmatch(d.Text); m != nil {
		a.Inverse = m[1]
	} else if m := backPopRe.FindStringSubmatch(d.Text); m != nil {
		a.Inverse = m[1]
	}
	if m := secondaryRe.FindStringSubmatch(d.Text); m != nil {
		a.JoinTable = m[1]
	}
	return a, true
}

// HasColumn reports whether the block declares a column with the given name.
func (b Block) HasColumn(name string) bool {
	for _, c := range b.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Definition converts the block into a raw entity definition.
func (b Block) Definition() model.Definition {
	def := model.Definition{Name: b.Name, Table: b.Table, File: b.File}
	for _, c := range b.Columns {
		def.Columns = append(def.Columns, c.Column())
	}
	for _, r := range b.Relations {
		if a, ok := r.Association(); ok {
			def.Associations = append(def.Associations, a)
		}
	}
	return def
}
