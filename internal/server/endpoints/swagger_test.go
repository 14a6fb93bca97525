package endpoints

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwaggerEndpoint(t *testing.T) {
	t.Run("serves generated spec", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "swagger.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"swagger":"2.0"}`), 0o644))

		rec := httptest.NewRecorder()
		(&SwaggerEndpoint{SpecPath: path}).handler(rec, httptest.NewRequest(http.MethodGet, "/swagger.json", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"swagger":"2.0"}`, rec.Body.String())
	})

	t.Run("missing spec points at go generate", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "swagger.json")

		rec := httptest.NewRecorder()
		(&SwaggerEndpoint{SpecPath: path}).handler(rec, httptest.NewRequest(http.MethodGet, "/swagger.json", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Contains(t, body.Error, "go generate ./docs")
		assert.Contains(t, body.Error, path)
	})
}
