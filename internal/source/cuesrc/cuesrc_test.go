package cuesrc

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/scaffold/internal/analyze"
	"github.com/matthewbaird/scaffold/internal/model"
	"github.com/matthewbaird/scaffold/internal/source"
	"github.com/matthewbaird/scaffold/internal/source/textsrc"
)

const entities = `
#Task: #Model & {
	tablename: "tasks"
	id:         #Integer & {primary_key: true}
	title:      #String & {length: 200, nullable: false}
	notes:      #Text
	done:       #Boolean & {default: false}
	created_at: #DateTime & {default: #Now}
	user_id:    #Integer & {foreign_key: "users.id", nullable: false}
	author:     #Relationship & {target: "User", backref: "tasks"}
}

#User: #Model & {
	tablename: "users"
	id:       #Integer & {primary_key: true}
	username: #String & {length: 64, unique: true, nullable: false}
	tags:     #Relationship & {target: "Tag", secondary: "user_tags"}
}

#Mixin: {
	created_at: #DateTime
}
`

const taskFile = `package models

import "example.com/app/models/db"

#Task: db.#Model & {
	tablename: "tasks"
	id:         db.#Integer & {primary_key: true}
	title:      db.#String & {length: 200, nullable: false}
	notes:      db.#Text
	done:       db.#Boolean & {default: false}
	created_at: db.#DateTime & {default: db.#Now}
	user_id:    db.#Integer & {foreign_key: "users.id", nullable: false}
	author:     db.#Relationship & {target: "User", backref: "tasks"}
}

#Category: db.#Model & {
	tablename: "categories"
	id:   db.#Integer & {primary_key: true}
	name: db.#String & {
		length:   100
		nullable: false
		unique:   true
	}
	parent_id: db.#Integer & {foreign_key: "categories.id"}
}
`

// boardFile mixes single-line columns, a generic #Column and multi-line
// declarations in one block.
const boardFile = `package models

import "example.com/app/models/db"

#Board: db.#Model & {
	tablename: "boards"
	id:    db.#Integer & {primary_key: true}
	name:  db.#String & {length: 80, nullable: false}
	done:  db.#Boolean & {default: false}
	count: db.#Column & {type: "Integer", nullable: false}
	summary: db.#Text & {
		nullable: true
	}
	category_id: db.#Integer & {
		foreign_key: "categories.id"
		nullable:    false
	}
}
`

func compile(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString("package models\n" + VocabularyBody() + src)
	require.NoError(t, v.Err())
	return v
}

// writeModule lays out a models directory: a CUE module holding the db
// vocabulary package and the given entity files.
func writeModule(t *testing.T, withModule bool, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if withModule {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "cue.mod"), 0o755))
		mod := "module: \"example.com/app/models@v0\"\nlanguage: version: \"v0.9.0\"\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "cue.mod", "module.cue"), []byte(mod), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "db"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db", "db.cue"), []byte(Vocabulary), 0o644))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestFromValue_Definitions(t *testing.T) {
	defs, err := FromValue(compile(t, entities)).Definitions(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)

	task := defs[0]
	assert.Equal(t, "Task", task.Name)
	assert.Equal(t, "tasks", task.Table)
	require.Len(t, task.Columns, 6)

	byName := map[string]model.ColumnDecl{}
	for _, c := range task.Columns {
		byName[c.Name] = c
	}
	assert.True(t, byName["id"].PrimaryKey)
	assert.Equal(t, "Integer", byName["id"].Type)
	assert.Equal(t, "String", byName["title"].Type)
	assert.Equal(t, 200, byName["title"].Length)
	require.NotNil(t, byName["title"].Nullable)
	assert.False(t, *byName["title"].Nullable)
	require.NotNil(t, byName["notes"].Nullable)
	assert.True(t, *byName["notes"].Nullable)
	assert.Equal(t, "now", byName["created_at"].Default)
	assert.NotEmpty(t, byName["done"].Default)
	assert.Empty(t, byName["notes"].Default)
	assert.Equal(t, "users.id", byName["user_id"].ForeignKey)

	assert.Equal(t, []model.Association{{Name: "author", Target: "User", Inverse: "tasks"}}, task.Associations)

	user := defs[1]
	assert.Equal(t, "users", user.Table)
	assert.Equal(t, []model.Association{{Name: "tags", Target: "Tag", JoinTable: "user_tags"}}, user.Associations)
	assert.True(t, user.Columns[1].Unique)
}

func TestFromValue_EvaluationError(t *testing.T) {
	v := cuecontext.New().CompileString(`1 & 2`)
	_, err := FromValue(v).Definitions(context.Background())
	assert.Error(t, err)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope")).Definitions(context.Background())
	assert.ErrorIs(t, err, source.ErrNoSource)
}

func TestNew_LoadsModule(t *testing.T) {
	dir := writeModule(t, true, map[string]string{"task.cue": taskFile})
	defs, err := New(dir).Definitions(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "Task", defs[0].Name)
	assert.Equal(t, "Category", defs[1].Name)
}

// Both providers must yield the same fields, types, nullability, primary
// key and owner field for the same source.
func TestExtractionPathEquivalence(t *testing.T) {
	dir := writeModule(t, true, map[string]string{"task.cue": taskFile, "board.cue": boardFile})

	live, err := New(dir).Definitions(context.Background())
	require.NoError(t, err)
	parsed, err := textsrc.New(dir, nil).Definitions(context.Background())
	require.NoError(t, err)

	liveSchema, err := analyze.Build(live, "users")
	require.NoError(t, err)
	parsedSchema, err := analyze.Build(parsed, "users")
	require.NoError(t, err)

	require.Equal(t, liveSchema.Len(), parsedSchema.Len())
	for _, want := range liveSchema.Entities() {
		got := parsedSchema.Entity(want.Name)
		require.NotNil(t, got, want.Name)
		assert.Equal(t, want.Table, got.Table)
		assert.Equal(t, want.Fields, got.Fields, want.Name)
		assert.Equal(t, want.PrimaryKey, got.PrimaryKey)
		assert.Equal(t, want.OwnerField, got.OwnerField)
		assert.Equal(t, want.Links, got.Links)
		assert.Equal(t, want.Associations, got.Associations)
	}

	board := parsedSchema.Entity("Board")
	require.NotNil(t, board)
	count, ok := board.Field("count")
	require.True(t, ok)
	assert.Equal(t, model.TypeInteger, count.Type)
	_, ok = board.LinkTo("categories")
	assert.True(t, ok, "multi-line foreign key is extracted")
}

func TestExtractor_FallsBackOnUnresolvedImport(t *testing.T) {
	dir := writeModule(t, false, map[string]string{"task.cue": taskFile})

	var logs bytes.Buffer
	x := &source.Extractor{
		Primary:  New(dir),
		Fallback: textsrc.New(dir, nil),
		Logger:   log.New(&logs, "", 0),
	}
	defs, provider, err := x.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "text", provider)
	assert.Len(t, defs, 2)
	assert.Contains(t, logs.String(), "warning: cue load failed")
	assert.Contains(t, logs.String(), "falling back to text parser")
}

func TestExtractor_MissingDirectoryIsFatal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	x := &source.Extractor{Primary: New(dir), Fallback: textsrc.New(dir, nil)}
	_, _, err := x.Extract(context.Background())
	assert.ErrorIs(t, err, source.ErrNoSource)
}
