package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:    "test",
		Port:           8080,
		Version:        "test",
		RateLimit:      100,
		UpdateBuffer:   4,
		AllowedOrigins: []string{"*"},
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app := NewApp(context.Background(), nil, testConfig(), zap.NewNop())
	defer app.Hub.Close()

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestNewAppWithoutDatabaseUsesMemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app := NewApp(context.Background(), nil, testConfig(), zap.NewNop())
	defer app.Hub.Close()

	assert.Nil(t, app.Services.Attachment)

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/boards", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"boards":[],"page":1,"page_size":10}`, w.Body.String())
}
