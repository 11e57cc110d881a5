package model

import "strings"

// Pluralize derives a table name from an entity name when no table is
// declared: trailing s gets "es", trailing y becomes "ies", anything else
// gets "s". The name is lower-cased first, so "Category" maps to "categories".
func Pluralize(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, "s"):
		return n + "es"
	case strings.HasSuffix(n, "y"):
		return n[:len(n)-1] + "ies"
	default:
		return n + "s"
	}
}

// Singularize undoes Pluralize for table names used in child route paths.
func Singularize(table string) string {
	switch {
	case strings.HasSuffix(table, "ies") && len(table) > 3:
		return table[:len(table)-3] + "y"
	case strings.HasSuffix(table, "ses") && len(table) > 3:
		return table[:len(table)-2]
	case strings.HasSuffix(table, "s") && len(table) > 1:
		return table[:len(table)-1]
	default:
		return table
	}
}

// Label turns a column name into a human-readable label ("due_date" → "Due Date").
func Label(name string) string {
	parts := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, " ")
}

// Pascal converts snake_case to PascalCase.
func Pascal(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "")
}

// Camel converts snake_case to camelCase.
func Camel(s string) string {
	p := Pascal(s)
	if len(p) == 0 {
		return p
	}
	return strings.ToLower(p[:1]) + p[1:]
}

// Snake converts PascalCase to snake_case.
func Snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
