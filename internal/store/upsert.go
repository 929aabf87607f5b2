package store

import (
	"fmt"
	"regexp"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Upsert describes an insert-or-update keyed on ConflictKey. Each backend
// renders it in its own dialect; every column other than ConflictKey is
// overwritten on conflict.
type Upsert struct {
	Table       string
	Columns     []string
	Values      []any
	ConflictKey string
}

// Validate rejects descriptors that cannot be rendered safely. Identifiers
// are interpolated into SQL, so they must be plain names.
func (u Upsert) Validate() error {
	if !identPattern.MatchString(u.Table) {
		return fmt.Errorf("invalid table name %q", u.Table)
	}
	if len(u.Columns) == 0 {
		return fmt.Errorf("upsert into %s has no columns", u.Table)
	}
	if len(u.Columns) != len(u.Values) {
		return fmt.Errorf("upsert into %s: %d columns but %d values", u.Table, len(u.Columns), len(u.Values))
	}
	hasKey := false
	seen := make(map[string]bool, len(u.Columns))
	for _, c := range u.Columns {
		if !identPattern.MatchString(c) {
			return fmt.Errorf("invalid column name %q", c)
		}
		if seen[c] {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = true
		if c == u.ConflictKey {
			hasKey = true
		}
	}
	if !hasKey {
		return fmt.Errorf("conflict key %q is not among the columns of %s", u.ConflictKey, u.Table)
	}
	return nil
}

// Value returns the value bound to column, if present.
func (u Upsert) Value(column string) (any, bool) {
	for i, c := range u.Columns {
		if c == column {
			return u.Values[i], true
		}
	}
	return nil, false
}

// Render produces the statement text for dialect d. Arguments are u.Values
// in column order.
func (u Upsert) Render(d Dialect) (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}

	placeholders := make([]string, len(u.Columns))
	for i := range u.Columns {
		placeholders[i] = placeholder(d, i+1)
	}

	excluded := "excluded"
	if d == DialectServer {
		excluded = "EXCLUDED"
	}
	updates := make([]string, 0, len(u.Columns)-1)
	for _, c := range u.Columns {
		if c != u.ConflictKey {
			updates = append(updates, fmt.Sprintf("%s = %s.%s", c, excluded, c))
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		u.Table, strings.Join(u.Columns, ", "), strings.Join(placeholders, ", "), u.ConflictKey)
	if len(updates) == 0 {
		sb.WriteString("DO NOTHING")
	} else {
		sb.WriteString("DO UPDATE SET ")
		sb.WriteString(strings.Join(updates, ", "))
	}
	return sb.String(), nil
}

func placeholder(d Dialect, n int) string {
	if d == DialectServer {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
