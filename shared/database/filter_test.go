package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	var f Filter
	f.Raw("is_deleted = FALSE").
		Add("LOWER(name) LIKE ?", Like("Ahorro")).
		Add("iban LIKE ?", Like("")).
		Add("interest >= ?", 1.5)

	assert.Equal(t, " WHERE is_deleted = FALSE AND LOWER(name) LIKE $1 AND interest >= $2", f.Where())
	assert.Equal(t, []any{"%ahorro%", 1.5}, f.Args())

	page, args := f.Page("created_at", "desc", 10, 20)
	assert.Equal(t, " ORDER BY created_at DESC LIMIT $3 OFFSET $4", page)
	assert.Equal(t, []any{"%ahorro%", 1.5, 10, 20}, args)
}

func TestFilterEmpty(t *testing.T) {
	var f Filter
	assert.Equal(t, "", f.Where())
	page, args := f.Page("guid", "sideways", 5, 0)
	assert.Equal(t, " ORDER BY guid ASC LIMIT $1 OFFSET $2", page)
	assert.Equal(t, []any{5, 0}, args)
}
