// Package sqlitesrc derives entity definitions from an existing SQLite
// database by reading its catalog.
package sqlitesrc

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/matthewbaird/scaffold/internal/model"
	"github.com/matthewbaird/scaffold/internal/source"
)

// Source introspects the tables of one database.
type Source struct {
	db *sql.DB
}

// Open opens the database at dsn with the modernc driver.
func Open(dsn string) (*Source, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return New(db), nil
}

// New wraps an already open database.
func New(db *sql.DB) *Source {
	return &Source{db: db}
}

// Close closes the underlying database.
func (s *Source) Close() error { return s.db.Close() }

// Name implements source.ModelSource.
func (s *Source) Name() string { return "sqlite" }

// Definitions implements source.ModelSource. Tables are read in name
// order; the catalog carries no associations.
func (s *Source) Definitions(ctx context.Context) ([]model.Definition, error) {
	tables, err := s.tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: database has no tables", source.ErrNoSource)
	}

	defs := make([]model.Definition, 0, len(tables))
	for _, table := range tables {
		cols, err := s.columns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("introspect columns for %s: %w", table, err)
		}
		unique, err := s.uniqueColumns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("introspect indexes for %s: %w", table, err)
		}
		fks, err := s.foreignKeys(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("introspect foreign keys for %s: %w", table, err)
		}
		for i := range cols {
			if unique[cols[i].Name] {
				cols[i].Unique = true
			}
			if ref, ok := fks[cols[i].Name]; ok {
				cols[i].ForeignKey = ref
			}
		}
		defs = append(defs, model.Definition{
			Name:    model.Pascal(model.Singularize(table)),
			Table:   table,
			Columns: cols,
		})
	}
	return defs, nil
}

func (s *Source) tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *Source) columns(ctx context.Context, table string) ([]model.ColumnDecl, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []model.ColumnDecl
	for rows.Next() {
		var cid, notnull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		nullable := notnull == 0 && pk == 0
		typ, length := MapType(colType)
		c := model.ColumnDecl{
			Name:       name,
			Type:       typ,
			Length:     length,
			PrimaryKey: pk > 0,
			Nullable:   &nullable,
		}
		if dflt.Valid {
			c.Default = dflt.String
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// uniqueColumns returns the columns covered by a single-column unique index.
func (s *Source) uniqueColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quote(table)))
	if err != nil {
		return nil, err
	}
	var names []string
	for rows.Next() {
		var seq, uniq, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &uniq, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		if uniq == 1 && origin != "pk" && partial == 0 {
			names = append(names, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	unique := make(map[string]bool)
	for _, idx := range names {
		cols, err := s.indexColumns(ctx, idx)
		if err != nil {
			return nil, err
		}
		if len(cols) == 1 {
			unique[cols[0]] = true
		}
	}
	return unique, nil
}

func (s *Source) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quote(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

// foreignKeys maps each single-column foreign key to its "table.column"
// reference. A reference without a column points at the primary key.
func (s *Source) foreignKeys(ctx context.Context, table string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quote(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fks := make(map[string]string)
	for rows.Next() {
		var id, seq int
		var refTable, from, onUpdate, onDelete, match string
		var to sql.NullString
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		col := "id"
		if to.Valid && to.String != "" {
			col = to.String
		}
		if _, seen := fks[from]; !seen {
			fks[from] = refTable + "." + col
		}
	}
	return fks, rows.Err()
}

var lengthRe = regexp.MustCompile(`\(\s*(\d+)\s*\)`)

// MapType maps a declared SQLite column type onto a vocabulary type name
// and, for character types, the declared length.
func MapType(declared string) (string, int) {
	t := strings.ToUpper(strings.TrimSpace(declared))
	switch {
	case strings.Contains(t, "INT"):
		return "Integer", 0
	case strings.Contains(t, "BOOL"):
		return "Boolean", 0
	case strings.Contains(t, "DATETIME"), strings.Contains(t, "TIMESTAMP"):
		return "DateTime", 0
	case strings.Contains(t, "DATE"):
		return "Date", 0
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return "Float", 0
	case strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return "Numeric", 0
	case strings.Contains(t, "TEXT"), strings.Contains(t, "CLOB"):
		return "Text", 0
	}
	length := 0
	if m := lengthRe.FindStringSubmatch(t); m != nil {
		length, _ = strconv.Atoi(m[1])
	}
	return "String", length
}
