package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.trace/internal/monitoring"
)

func TestErrorHelpers(t *testing.T) {
	cases := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		msg    string
	}{
		{"json error", func(w http.ResponseWriter) { WriteJSONError(w, http.StatusTeapot, "tea") }, http.StatusTeapot, "tea"},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "busy") }, http.StatusConflict, "busy"},
		{"method not allowed", MethodNotAllowed, http.StatusMethodNotAllowed, "method not allowed"},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad x") }, http.StatusBadRequest, "bad x"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "disk full") }, http.StatusInternalServerError, "disk full"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "no frame") }, http.StatusNotFound, "no frame"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.write(rec)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var resp map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tc.msg, resp["error"])
		})
	}
}

func TestWriteJSONOK(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONOK(rec, map[string]int{"reference_x": 120})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reference_x":120}`, rec.Body.String())
}

func TestWriteJSON_EncodeFailureIsLogged(t *testing.T) {
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]interface{}{"bad": make(chan int)})

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "failed to encode json response")
}
