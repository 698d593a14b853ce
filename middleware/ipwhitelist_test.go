package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newWhitelistRouter(entries []string) *gin.Engine {
	r := gin.New()
	r.Use(IPWhitelist(entries))
	r.GET("/api/admin/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestIPWhitelist_Empty_AllowsAll(t *testing.T) {
	r := newWhitelistRouter(nil)
	assert.Equal(t, http.StatusOK, serveFrom(r, http.MethodGet, "/api/admin/metrics", "1.2.3.4").Code)
}

func TestIPWhitelist_ExactAddresses(t *testing.T) {
	r := newWhitelistRouter([]string{"10.0.0.1", " 10.0.0.2 "})
	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		assert.Equal(t, http.StatusOK, serveFrom(r, http.MethodGet, "/api/admin/metrics", ip).Code, ip)
	}
	assert.Equal(t, http.StatusForbidden, serveFrom(r, http.MethodGet, "/api/admin/metrics", "10.0.0.3").Code)
}

func TestIPWhitelist_CIDR(t *testing.T) {
	r := newWhitelistRouter([]string{"192.168.0.0/16", "::1"})
	assert.Equal(t, http.StatusOK, serveFrom(r, http.MethodGet, "/api/admin/metrics", "192.168.44.9").Code)
	assert.Equal(t, http.StatusOK, serveFrom(r, http.MethodGet, "/api/admin/metrics", "::1").Code)
	assert.Equal(t, http.StatusForbidden, serveFrom(r, http.MethodGet, "/api/admin/metrics", "172.16.0.1").Code)
}

func TestIPWhitelist_OnlyGarbageEntriesDeniesAll(t *testing.T) {
	r := newWhitelistRouter([]string{"not-an-ip"})
	assert.Equal(t, http.StatusForbidden, serveFrom(r, http.MethodGet, "/api/admin/metrics", "10.0.0.1").Code)
}
