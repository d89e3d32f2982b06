package db

import (
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Upsert describes a single-row INSERT ... ON CONFLICT statement keyed on Key.
// On conflict every column outside Key and Keep is overwritten with the
// incoming value. Placeholders follow Columns order.
type Upsert struct {
	Table   string
	Columns []string
	Key     []string
	Keep    []string
}

// SQL renders the statement with quoted identifiers.
func (u Upsert) SQL() (string, error) {
	if len(u.Columns) == 0 {
		return "", eris.New("db: upsert: no columns")
	}
	if len(u.Key) == 0 {
		return "", eris.New("db: upsert: no key columns")
	}

	fixed := make(map[string]bool, len(u.Key)+len(u.Keep))
	for _, c := range append(append([]string{}, u.Key...), u.Keep...) {
		fixed[c] = true
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteTable(u.Table))
	b.WriteString(" (")
	b.WriteString(quoteList(u.Columns))
	b.WriteString(") VALUES (")
	for i := range u.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$" + strconv.Itoa(i+1))
	}
	b.WriteString(") ON CONFLICT (")
	b.WriteString(quoteList(u.Key))
	b.WriteString(") ")

	var sets []string
	for _, c := range u.Columns {
		if fixed[c] {
			continue
		}
		q := pgx.Identifier{c}.Sanitize()
		sets = append(sets, q+" = EXCLUDED."+q)
	}
	if len(sets) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		b.WriteString("DO UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}
	return b.String(), nil
}

// quoteTable quotes a table name, splitting an optional schema prefix.
func quoteTable(table string) string {
	return pgx.Identifier(strings.SplitN(table, ".", 2)).Sanitize()
}

func quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
