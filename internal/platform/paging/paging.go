// Package paging holds the limit/offset helpers shared by list endpoints.
package paging

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
	Order  string // "asc" or "desc"
}

// List is the response envelope for paged endpoints.
type List[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	NextOffset int   `json:"next_offset"`
}

// FromQuery reads limit, offset and order from the query string. Bad values
// fall back to the defaults.
func FromQuery(c *gin.Context) Page {
	return Normalize(Page{
		Limit:  atoiDef(c.Query("limit"), DefaultLimit),
		Offset: atoiDef(c.Query("offset"), 0),
		Order:  strings.ToLower(c.DefaultQuery("order", "desc")),
	})
}

func Normalize(p Page) Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Order != "asc" {
		p.Order = "desc"
	}
	return p
}

// SQLOrder is safe to concatenate into a query.
func (p Page) SQLOrder() string {
	if p.Order == "asc" {
		return "ASC"
	}
	return "DESC"
}

// NextOffset is 0 when there is nothing left to fetch.
func NextOffset(total int64, p Page) int {
	n := p.Offset + p.Limit
	if n >= int(total) {
		return 0
	}
	return n
}

func NewList[T any](items []T, total int64, p Page) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Total: total, NextOffset: NextOffset(total, p)}
}

func atoiDef(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
