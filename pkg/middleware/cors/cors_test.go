package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/status", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/status", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowList(t *testing.T) {
	origins := []string{"https://admin.lyceum.example/", "https://*.school.example"}

	w := serve(origins, http.MethodGet, "https://admin.lyceum.example")
	assert.Equal(t, "https://admin.lyceum.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))

	w = serve(origins, http.MethodGet, "https://grade7.school.example")
	assert.Equal(t, "https://grade7.school.example", w.Header().Get("Access-Control-Allow-Origin"))

	for _, denied := range []string{"https://school.example", "http://grade7.school.example", "https://evil.example"} {
		w = serve(origins, http.MethodGet, denied)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), denied)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORSAllowsAnyWhenUnconfigured(t *testing.T) {
	w := serve(nil, http.MethodGet, "")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(nil, http.MethodGet, "https://anywhere.example")
	assert.Equal(t, "https://anywhere.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	w := serve([]string{"https://admin.lyceum.example"}, http.MethodOptions, "https://admin.lyceum.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, HEAD, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}
