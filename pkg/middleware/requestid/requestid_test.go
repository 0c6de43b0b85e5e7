package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(seen *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/health", func(c *gin.Context) {
		*seen = Value(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestMiddlewareGeneratesID(t *testing.T) {
	var seen string
	w := httptest.NewRecorder()
	newRouter(&seen).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(headerKey))
}

func TestMiddlewareKeepsInboundID(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerKey, "probe-1")
	newRouter(&seen).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "probe-1", seen)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerKey, strings.Repeat("x", maxInboundLength+1))
	newRouter(&seen).ServeHTTP(httptest.NewRecorder(), req)
	assert.NotContains(t, seen, "xxx")
}

func TestMiddlewareReplacesUnsafeInboundID(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerKey, "probe 1\tinjected=true")
	newRouter(&seen).ServeHTTP(httptest.NewRecorder(), req)

	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestValueWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", Value(c))
}
