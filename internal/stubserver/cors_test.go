package stubserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func TestConfigureCORSAllowsConfiguredOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	middleware, err := ConfigureCORS(zaptest.NewLogger(t), []string{"http://localhost:5173"})
	if err != nil {
		t.Fatalf("unexpected error configuring CORS: %v", err)
	}
	router := gin.New()
	router.Use(middleware)
	router.OPTIONS("/auth/login", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	request.Header.Set("Origin", "http://localhost:5173")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	router.ServeHTTP(recorder, request)

	if origin := recorder.Header().Get("Access-Control-Allow-Origin"); origin != "http://localhost:5173" {
		t.Fatalf("unexpected allowed origin header: %q", origin)
	}
}

func TestConfigureCORSRejectsBlankOrigins(t *testing.T) {
	if _, err := ConfigureCORS(nil, nil); err == nil {
		t.Fatalf("expected error for nil origin list")
	}
	if _, err := ConfigureCORS(nil, []string{"   "}); err == nil {
		t.Fatalf("expected error for whitespace origin")
	}
	if _, err := ConfigureCORS(nil, []string{"ftp://example.com"}); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}
