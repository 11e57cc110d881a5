package repair

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/scaffold/internal/analyze"
	"github.com/matthewbaird/scaffold/internal/model"
	"github.com/matthewbaird/scaffold/internal/source"
	"github.com/matthewbaird/scaffold/internal/source/textsrc"
)

const projectFile = `package models

#Project: db.#Model & {
	tablename: "projects"

	id:   db.#Integer & {primary_key: true}
	name: db.#String & {length: 80}
}
`

const taskFile = `package models

#Task: db.#Model & {
	tablename: "tasks"

	id:    db.#Integer & {primary_key: true}
	title: db.#String & {length: 200, nullable: false}
	body: db.#Text & {
		nullable: true
	}

	project: db.#Relationship & {target: "Project", back_populates: "project"}
}

#Tag: db.#Model & {
	tablename: "tags"
	task: db.#Relationship & {target: "Task", backref: "task"}
}
`

const taskRepaired = `package models

#Task: db.#Model & {
	tablename: "tasks"

	id:    db.#Integer & {primary_key: true}
	title: db.#String & {length: 200, nullable: false}
	body: db.#Text & {
		nullable: true
	}
	project_id: db.#Integer & {foreign_key: "projects.id", nullable: false}

	project: db.#Relationship & {target: "Project", back_populates: "project"}
}

#Tag: db.#Model & {
	tablename: "tags"
	task_id: db.#Integer & {foreign_key: "tasks.id", nullable: false}
	task: db.#Relationship & {target: "Task", backref: "task"}
}
`

// boardFile has enough single-line columns that extraction does not need the
// statement re-scan, followed by a multi-line column.
const boardFile = `package models

#Board: db.#Model & {
	tablename: "boards"
	id:    db.#Integer & {primary_key: true}
	title: db.#String & {length: 80}
	done:  db.#Boolean & {default: false}
	body: db.#Text & {
		nullable: true
	}
	project: db.#Relationship & {target: "Project", backref: "project"}
}
`

const boardRepaired = `package models

#Board: db.#Model & {
	tablename: "boards"
	id:    db.#Integer & {primary_key: true}
	title: db.#String & {length: 80}
	done:  db.#Boolean & {default: false}
	body: db.#Text & {
		nullable: true
	}
	project_id: db.#Integer & {foreign_key: "projects.id", nullable: false}
	project: db.#Relationship & {target: "Project", backref: "project"}
}
`

func writeModels(t *testing.T) string {
	t.Helper()
	return writeFiles(t, map[string]string{"project.cue": projectFile, "task.cue": taskFile})
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	return dir
}

func schemaOf(t *testing.T, dir string) *model.Schema {
	t.Helper()
	defs, err := textsrc.New(dir, nil).Definitions(context.Background())
	require.NoError(t, err)
	s, err := analyze.Build(defs, "users")
	require.NoError(t, err)
	return s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApply_InsertsMissingForeignKeys(t *testing.T) {
	dir := writeModels(t)
	s := schemaOf(t, dir)
	require.Equal(t, 2, s.Findings())

	res, err := Apply(dir, s, Options{})
	require.NoError(t, err)

	taskPath := filepath.Join(dir, "task.cue")
	assert.Equal(t, taskRepaired, readFile(t, taskPath))
	assert.Equal(t, projectFile, readFile(t, filepath.Join(dir, "project.cue")))
	assert.Equal(t, []string{taskPath}, res.Files)
	assert.False(t, res.OwnerAdded)
	assert.Equal(t, []Insertion{
		{File: taskPath, Entity: "Task", Column: "project_id", TargetTable: "projects", Line: 11},
		{File: taskPath, Entity: "Tag", Column: "task_id", TargetTable: "tasks", Line: 18},
	}, res.Inserted)
}

func TestApply_Idempotent(t *testing.T) {
	dir := writeModels(t)
	_, err := Apply(dir, schemaOf(t, dir), Options{})
	require.NoError(t, err)

	s := schemaOf(t, dir)
	assert.Equal(t, 0, s.Findings())
	link, ok := s.Entity("Task").LinkTo("projects")
	require.True(t, ok)
	assert.Equal(t, "project_id", link.Field)

	res, err := Apply(dir, s, Options{})
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.Equal(t, taskRepaired, readFile(t, filepath.Join(dir, "task.cue")))
}

func TestApply_RechecksSourceBeforeInserting(t *testing.T) {
	dir := writeModels(t)
	stale := schemaOf(t, dir)

	// The column appears in the file after the schema was built.
	path := filepath.Join(dir, "task.cue")
	fixed := bytes.Replace([]byte(taskFile),
		[]byte("\ttablename: \"tags\"\n"),
		[]byte("\ttablename: \"tags\"\n\ttask_id: db.#Integer & {foreign_key: \"tasks.id\"}\n"), 1)
	require.NoError(t, os.WriteFile(path, fixed, 0644))

	res, err := Apply(dir, stale, Options{})
	require.NoError(t, err)
	require.Len(t, res.Inserted, 1)
	assert.Equal(t, "project_id", res.Inserted[0].Column)
	assert.Equal(t, 1, bytes.Count([]byte(readFile(t, path)), []byte("task_id:")))
}

func TestApply_AnchorsAfterMultiLineColumn(t *testing.T) {
	dir := writeFiles(t, map[string]string{"project.cue": projectFile, "board.cue": boardFile})
	s := schemaOf(t, dir)
	require.Equal(t, 1, s.Findings())

	res, err := Apply(dir, s, Options{})
	require.NoError(t, err)
	path := filepath.Join(dir, "board.cue")
	assert.Equal(t, boardRepaired, readFile(t, path))
	assert.Equal(t, []Insertion{
		{File: path, Entity: "Board", Column: "project_id", TargetTable: "projects", Line: 11},
	}, res.Inserted)
}

func TestApply_SkipsMultiLineColumnAddedSinceAnalysis(t *testing.T) {
	dir := writeFiles(t, map[string]string{"project.cue": projectFile, "board.cue": boardFile})
	stale := schemaOf(t, dir)
	require.Equal(t, 1, stale.Findings())

	path := filepath.Join(dir, "board.cue")
	fixed := strings.Replace(boardFile, "\t\tnullable: true\n\t}\n",
		"\t\tnullable: true\n\t}\n\tproject_id: db.#Integer & {\n\t\tforeign_key: \"projects.id\"\n\t}\n", 1)
	require.NotEqual(t, boardFile, fixed)
	require.NoError(t, os.WriteFile(path, []byte(fixed), 0644))

	res, err := Apply(dir, stale, Options{})
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.Equal(t, fixed, readFile(t, path))
	assert.Equal(t, 0, schemaOf(t, dir).Findings(), "extraction sees the multi-line column")
}

func TestApply_EnsureOwner(t *testing.T) {
	dir := writeModels(t)
	res, err := Apply(dir, schemaOf(t, dir), Options{EnsureOwner: true})
	require.NoError(t, err)
	assert.True(t, res.OwnerAdded)
	assert.Equal(t, []string{filepath.Join(dir, "project.cue"), filepath.Join(dir, "task.cue")}, res.Files)

	project := readFile(t, filepath.Join(dir, "project.cue"))
	assert.Contains(t, project, "}\n\n#User: db.#Model & {\n\ttablename: \"users\"\n")
	assert.Contains(t, project, "\tusername:      db.#String & {length: 64, unique: true, nullable: false}\n")

	s := schemaOf(t, dir)
	user := s.ByTable("users")
	require.NotNil(t, user)
	assert.Equal(t, "User", user.Name)
	assert.Equal(t, "id", user.PrimaryKey)
	username, ok := user.Field("username")
	require.True(t, ok)
	assert.Equal(t, 64, username.MaxLength)
	assert.True(t, username.Unique)
	assert.False(t, username.Nullable)

	res, err = Apply(dir, s, Options{EnsureOwner: true})
	require.NoError(t, err)
	assert.False(t, res.Changed(), "owner entity already present")
}

func TestApply_NothingToDo(t *testing.T) {
	s, err := analyze.Build([]model.Definition{{Name: "User", Table: "users"}}, "users")
	require.NoError(t, err)

	res, err := Apply(filepath.Join(t.TempDir(), "missing"), s, Options{EnsureOwner: true})
	require.NoError(t, err)
	assert.False(t, res.Changed())
}

func TestApply_MissingDirectory(t *testing.T) {
	dir := writeModels(t)
	s := schemaOf(t, dir)
	_, err := Apply(filepath.Join(dir, "missing"), s, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrNoSource))
}

func TestApply_UnknownBlockIsLogged(t *testing.T) {
	dir := writeModels(t)
	s := schemaOf(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "task.cue")))

	var buf bytes.Buffer
	res, err := Apply(dir, s, Options{Logger: log.New(&buf, "", 0)})
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.Contains(t, buf.String(), "warning: repair found no source block for entity Tag")
	assert.Contains(t, buf.String(), "warning: repair found no source block for entity Task")
}
