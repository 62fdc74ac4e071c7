package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "keyactivate/docs"
	"keyactivate/internal/activation"
	"keyactivate/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticPinger struct{ err error }

func (p staticPinger) Ping(context.Context) error { return p.err }

func newTestRouter(docs bool) *gin.Engine {
	return NewRouter(activation.New(activation.NewMemoryStore()), staticPinger{}, Options{APIDocs: docs})
}

func TestRouter_ActivateFlow(t *testing.T) {
	r := newTestRouter(false)

	for i, want := range []float64{1, 1, 2} {
		key := "ABC123"
		if i == 2 {
			key = "XYZ999"
		}
		req := httptest.NewRequest(http.MethodPost, "/activate", strings.NewReader(`{"key":"`+key+`"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, want, body["total_users"])
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	}
}

func TestRouter_Root(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "POST /activate")
}

func TestRouter_Readyz(t *testing.T) {
	r := NewRouter(activation.New(activation.NewMemoryStore()), staticPinger{err: errors.New("down")}, Options{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	r := NewRouter(activation.New(panickingStore{}), staticPinger{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/activate", strings.NewReader(`{"key":"K"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// the engine keeps serving afterwards
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_SwaggerDocs(t *testing.T) {
	r := newTestRouter(true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/swagger/index.html", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/activate")
}

func TestRouter_SwaggerDisabled(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
