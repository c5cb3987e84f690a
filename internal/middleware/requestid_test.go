package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func performRequest(headers map[string]string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	w := performRequest(nil)

	id := w.Header().Get(requestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}

func TestRequestIDKeepsValidInbound(t *testing.T) {
	inbound := uuid.New().String()
	w := performRequest(map[string]string{requestIDHeader: inbound})

	assert.Equal(t, inbound, w.Header().Get(requestIDHeader))
}

func TestRequestIDReplacesNonUUIDInbound(t *testing.T) {
	w := performRequest(map[string]string{requestIDHeader: "not-a-uuid\nfake-log-line"})

	id := w.Header().Get(requestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotContains(t, id, "\n")
}
