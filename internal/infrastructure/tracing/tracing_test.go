package tracing

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/id"
)

func setupRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)

	router := gin.New()
	router.Use(HTTPMiddleware(New(zap.New(core))))
	router.GET("/echo", func(c *gin.Context) {
		rid, _ := RequestID(c.Request.Context())
		c.String(http.StatusOK, rid.String())
	})
	router.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	return router, logs
}

func TestRequestIDHeader(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"none", "", false},
		{"client id", "dashboard-42", true},
		{"too long", strings.Repeat("x", maxRequestIDLen+1), false},
		{"control chars", "bad\tid", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/echo", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			router.ServeHTTP(rec, req)

			got := rec.Header().Get(HeaderRequestID)
			require.NotEmpty(t, got)
			assert.Equal(t, got, rec.Body.String(), "handler sees the same id")
			if tt.keep {
				assert.Equal(t, tt.incoming, got)
				return
			}
			assert.True(t, strings.HasPrefix(got, id.RequestPrefix+"_"))
			assert.True(t, id.IsValid(strings.TrimPrefix(got, id.RequestPrefix+"_")))
		})
	}
}

func TestSpansAreLogged(t *testing.T) {
	router, logs := setupRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/echo", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "admin request", entries[0].Message)
	assert.Equal(t, "/echo", entries[0].ContextMap()["path"])
	assert.Equal(t, "admin request failed", entries[1].Message)
	assert.EqualValues(t, 500, entries[1].ContextMap()["status"])
}
