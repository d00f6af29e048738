package database

import (
	"fmt"
	"strings"
)

// Filter accumulates optional WHERE conditions for list queries. Each
// condition carries a single "?" that is rewritten to the next $n placeholder.
type Filter struct {
	conds []string
	args  []any
}

// Add appends cond; a zero-value string arg skips the condition.
func (f *Filter) Add(cond string, arg any) *Filter {
	if s, ok := arg.(string); ok && s == "" {
		return f
	}
	f.args = append(f.args, arg)
	f.conds = append(f.conds, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(f.args)), 1))
	return f
}

// Raw appends a condition without arguments.
func (f *Filter) Raw(cond string) *Filter {
	f.conds = append(f.conds, cond)
	return f
}

func (f *Filter) Where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// Page renders ORDER BY, LIMIT and OFFSET. sortColumn must come from a
// whitelist, never from user input directly.
func (f *Filter) Page(sortColumn, direction string, limit, offset int) (string, []any) {
	dir := "ASC"
	if strings.EqualFold(direction, "desc") {
		dir = "DESC"
	}
	args := append(append([]any{}, f.args...), limit, offset)
	return fmt.Sprintf(" ORDER BY %s %s LIMIT $%d OFFSET $%d", sortColumn, dir, len(args)-1, len(args)), args
}

func (f *Filter) Args() []any { return f.args }

// Like wraps s for a case-insensitive contains match.
func Like(s string) string {
	if s == "" {
		return ""
	}
	return "%" + strings.ToLower(s) + "%"
}
