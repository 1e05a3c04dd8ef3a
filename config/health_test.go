package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_MemoryWithoutBroker(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHealthChecker(nil, nil, nil).Register(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp struct {
		Status       string                       `json:"status"`
		Dependencies map[string]map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "memory", resp.Dependencies["storage"]["backend"])
	assert.Equal(t, "disabled", resp.Dependencies["rabbitmq"]["status"])
	assert.Equal(t, "down", resp.Dependencies["mqtt"]["status"])
}

func TestHealth_PostgresPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	mock.ExpectPing()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHealthChecker(sqlx.NewDb(db, "postgres"), nil, nil).Register(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	r.ServeHTTP(w, req)

	var resp struct {
		Dependencies map[string]map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "up", resp.Dependencies["storage"]["status"])
	assert.Equal(t, "postgres", resp.Dependencies["storage"]["backend"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
