package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/scaffold/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func TestType(t *testing.T) {
	tests := []struct {
		expr string
		want model.SemanticType
	}{
		{"db.#Integer", model.TypeInteger},
		{"#BigInteger", model.TypeInteger},
		{"SmallInteger", model.TypeInteger},
		{"db.#String", model.TypeString},
		{"#Text", model.TypeText},
		{"Boolean", model.TypeBoolean},
		{"db.#DateTime", model.TypeDateTime},
		{"db.#Date", model.TypeDate},
		{"Float", model.TypeFloat},
		{"#Numeric", model.TypeNumeric},
		{"#Interval", model.TypeString},
		{"", model.TypeString},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Type(tt.expr), "Type(%q)", tt.expr)
	}
}

func TestDefault(t *testing.T) {
	assert.Equal(t, model.NoDefault, Default(""))
	assert.Equal(t, model.DefaultCreationTime, Default("db.#Now"))
	assert.Equal(t, model.DefaultCreationTime, Default("now"))
	assert.Equal(t, model.DefaultCreationTime, Default("CURRENT_TIMESTAMP"))
	assert.Equal(t, model.DefaultValue, Default("false"))
	assert.Equal(t, model.DefaultValue, Default(`"draft"`))
}

func TestForeignKey(t *testing.T) {
	assert.Nil(t, ForeignKey(""))
	assert.Equal(t, &model.ColumnRef{Table: "users", Column: "id"}, ForeignKey("users.id"))
	assert.Equal(t, &model.ColumnRef{Table: "categories", Column: "code"}, ForeignKey(`"categories.code"`))
	assert.Equal(t, &model.ColumnRef{Table: "widgets", Column: "id"}, ForeignKey("widgets"))
}

func TestColumn(t *testing.T) {
	tests := []struct {
		name string
		decl model.ColumnDecl
		want model.Field
	}{
		{
			name: "string with length",
			decl: model.ColumnDecl{Name: "title", Type: "#String", Length: 200, Nullable: boolPtr(false)},
			want: model.Field{Name: "title", Type: model.TypeString, MaxLength: 200},
		},
		{
			name: "nullable defaults to true",
			decl: model.ColumnDecl{Name: "description", Type: "#Text"},
			want: model.Field{Name: "description", Type: model.TypeText, Nullable: true},
		},
		{
			name: "length ignored for non-string",
			decl: model.ColumnDecl{Name: "price", Type: "#Numeric", Length: 10},
			want: model.Field{Name: "price", Type: model.TypeNumeric, Nullable: true},
		},
		{
			name: "primary key",
			decl: model.ColumnDecl{Name: "id", Type: "#Integer", PrimaryKey: true},
			want: model.Field{Name: "id", Type: model.TypeInteger, PrimaryKey: true, Nullable: true},
		},
		{
			name: "foreign key",
			decl: model.ColumnDecl{Name: "user_id", Type: "#Integer", ForeignKey: "users.id", Nullable: boolPtr(false)},
			want: model.Field{Name: "user_id", Type: model.TypeInteger, ForeignKey: &model.ColumnRef{Table: "users", Column: "id"}},
		},
		{
			name: "creation timestamp",
			decl: model.ColumnDecl{Name: "created_at", Type: "#DateTime", Default: "db.#Now"},
			want: model.Field{Name: "created_at", Type: model.TypeDateTime, Nullable: true, Default: model.DefaultCreationTime},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Column(tt.decl)
			assert.Equal(t, tt.want, got)
			if got.IsForeignKey() {
				assert.True(t, got.SkipInForm())
			}
		})
	}
}

func TestDefinition_PrimaryKey(t *testing.T) {
	fields, pk := Definition(model.Definition{Columns: []model.ColumnDecl{
		{Name: "code", Type: "#String", PrimaryKey: true},
		{Name: "name", Type: "#String"},
	}})
	require.Len(t, fields, 2)
	assert.Equal(t, "code", pk)

	_, pk = Definition(model.Definition{Columns: []model.ColumnDecl{{Name: "name", Type: "#String"}}})
	assert.Equal(t, "id", pk)
}
