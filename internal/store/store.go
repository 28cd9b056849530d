// internal/store/store.go

// Package store persists listings and conversations in Postgres.
package store

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
)

var ErrNotFound = errors.New("NOT_FOUND")

const (
	defaultLimit = 20
	maxLimit     = 100
)

// where accumulates AND-ed predicates with positional $n arguments.
type where struct {
	clauses []string
	args    []interface{}
}

// arg registers v and returns its placeholder.
func (w *where) arg(v interface{}) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *where) add(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// keyword adds an OR'd ILIKE over cols, reusing one placeholder.
func (w *where) keyword(kw string, cols ...string) {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return
	}
	p := w.arg("%" + escapeLike(kw) + "%")
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " ILIKE " + p
	}
	w.add("(" + strings.Join(parts, " OR ") + ")")
}

func (w *where) page(limit, offset int) string {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return " LIMIT " + w.arg(limit) + " OFFSET " + w.arg(offset)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
