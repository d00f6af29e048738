package middleware

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/vivesbank/backend/shared/models"
)

// PageRequest reads page, size, sortBy and direction from the query string.
// Malformed numbers fall back to defaults; callers normalise the result.
func PageRequest(c *gin.Context) models.PageRequest {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(models.DefaultPageSize)))
	return models.PageRequest{
		Page:      page,
		Size:      size,
		SortBy:    c.Query("sortBy"),
		Direction: c.DefaultQuery("direction", "asc"),
	}
}

// DecimalQuery parses an optional decimal query parameter.
func DecimalQuery(c *gin.Context, name string) (*decimal.Decimal, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return &d, nil
}
