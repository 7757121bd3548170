package paging

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFromQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name  string
		query string
		want  Page
	}{
		{"defaults", "", Page{Limit: 50, Offset: 0, Order: "desc"}},
		{"explicit", "?limit=10&offset=20&order=ASC", Page{Limit: 10, Offset: 20, Order: "asc"}},
		{"garbage", "?limit=x&offset=-4&order=sideways", Page{Limit: 50, Offset: 0, Order: "desc"}},
		{"capped", "?limit=5000", Page{Limit: MaxLimit, Offset: 0, Order: "desc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/x"+tc.query, nil)
			assert.Equal(t, tc.want, FromQuery(c))
		})
	}
}

func TestNextOffset(t *testing.T) {
	p := Page{Limit: 10, Offset: 10}
	assert.Equal(t, 20, NextOffset(25, p))
	assert.Equal(t, 0, NextOffset(20, p))
	assert.Equal(t, 0, NextOffset(3, p))
}

func TestNewListNeverNil(t *testing.T) {
	l := NewList[int](nil, 0, Page{Limit: 10})
	assert.NotNil(t, l.Items)
	assert.Empty(t, l.Items)
}
