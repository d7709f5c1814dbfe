package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/stretchr/testify/require"

	"github.com/redbadger/journey-dynamics/internal/api"
	"github.com/redbadger/journey-dynamics/internal/api/middleware"
	"github.com/redbadger/journey-dynamics/internal/config"
	"github.com/redbadger/journey-dynamics/internal/decision"
	"github.com/redbadger/journey-dynamics/internal/domain"
	"github.com/redbadger/journey-dynamics/internal/eventstore"
	"github.com/redbadger/journey-dynamics/internal/facade"
	"github.com/redbadger/journey-dynamics/internal/projection"
	"github.com/redbadger/journey-dynamics/internal/testutil"
	"github.com/redbadger/journey-dynamics/internal/validate"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool := testutil.OpenPostgres(t, "api_handlers", eventstore.SchemaSQL)
	ctx := context.Background()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	require.NoError(t, err)
	_, err = migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	require.NoError(t, err)

	store := eventstore.New()
	proj := projection.New()
	workers := river.NewWorkers()
	river.AddWorker(workers, projection.NewProjectEventsWorker(pool, store, proj))

	riverClient, err := river.NewClient[pgx.Tx](riverpgxv5.New(pool), &river.Config{
		Queues:  map[string]river.QueueConfig{"projection": {MaxWorkers: 5}},
		Workers: workers,
	})
	require.NoError(t, err)
	require.NoError(t, riverClient.Start(ctx))
	t.Cleanup(func() { _ = riverClient.Stop(ctx) })

	svcFunc := func(context.Context) domain.Services {
		return domain.Services{Validator: validate.Permissive{}, Decision: decision.SimpleEngine{}}
	}

	f := facade.New(pool, store, riverClient, svcFunc)
	h := api.NewHandlers(f)

	cfg := &config.Config{
		Security: config.SecurityConfig{JWTSigningKey: testSigningKey},
	}
	return api.NewRouter(cfg, h)
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestJourneyRoutesRejectMissingToken(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/journeys", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

const testSigningKey = "test-signing-key-at-least-32-bytes-long"

func bearer(t *testing.T) string {
	t.Helper()
	token, _, err := middleware.GenerateToken(middleware.JWTConfig{
		SigningKey: []byte(testSigningKey),
		Issuer:     "journey-dynamics",
		ExpiresIn:  time.Hour,
	}, "test-user", "tester")
	require.NoError(t, err)
	return "Bearer " + token
}

func TestJourneyLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	auth := bearer(t)

	// Start
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/journeys", nil)
	req.Header.Set("Authorization", auth)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/journeys/"))
	id := strings.TrimPrefix(location, "/journeys/")

	// Capture
	body := `{"type":"Capture","step":"first_name","data":"Joe"}`
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/journeys/"+id, strings.NewReader(body))
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Complete
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/journeys/"+id, strings.NewReader(`{"type":"Complete"}`))
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/journeys/"+id, nil)
		req.Header.Set("Authorization", auth)
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		var view map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		return view["state"] == "Complete"
	}, 5*time.Second, 50*time.Millisecond, "projection did not catch up")
}

func TestGetJourneyNotFound(t *testing.T) {
	router := newTestRouter(t)
	auth := bearer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/journeys/00000000-0000-0000-0000-000000000000", nil)
	req.Header.Set("Authorization", auth)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
