package request

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyLimit(t *testing.T) {
	echo := func(readErr *error) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, *readErr = io.ReadAll(r.Body)
			if *readErr == nil {
				w.WriteHeader(http.StatusOK)
			}
		})
	}

	t.Run("submission under the limit passes through", func(t *testing.T) {
		var readErr error
		handler := BodyLimit(1024)(echo(&readErr))

		body := `{"kind":"export","subject":"jane.doe@example.com"}`
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/privacy/requests", strings.NewReader(body)))

		require.NoError(t, readErr)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("body at exactly the limit passes through", func(t *testing.T) {
		var readErr error
		handler := BodyLimit(64)(echo(&readErr))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/privacy/requests", strings.NewReader(strings.Repeat("x", 64))))

		require.NoError(t, readErr)
	})

	t.Run("oversized body fails the read", func(t *testing.T) {
		var readErr error
		handler := BodyLimit(64)(echo(&readErr))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/privacy/requests", strings.NewReader(strings.Repeat("x", 200))))

		require.Error(t, readErr)
		assert.Contains(t, readErr.Error(), "request body too large")
	})

	t.Run("bodyless request passes through", func(t *testing.T) {
		var readErr error
		handler := BodyLimit(64)(echo(&readErr))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/privacy/requests/abc", nil))

		require.NoError(t, readErr)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
