package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow/fundflow-backend/internal/adapter/repository/memory"
	"github.com/fundflow/fundflow-backend/internal/usecase/campaign"
	"github.com/fundflow/fundflow-backend/internal/usecase/funding"
	"github.com/fundflow/fundflow-backend/internal/usecase/payout"
	"github.com/fundflow/fundflow-backend/internal/usecase/stats"
)

const testToken = "test-token"

func newTestRouter(t *testing.T) (*mux.Router, *memory.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := memory.NewStore()
	handler := NewHandler(
		campaign.NewService(store, store, store, logger),
		funding.NewService(store, logger),
		payout.NewService(store, logger),
		stats.NewService(store),
		logger,
	)
	return handler.Router(testToken), store
}

func doJSON(t *testing.T, router *mux.Router, method, path string, userID uuid.UUID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req.Header.Set("X-User-ID", userID.String())
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAuthRequired(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestCampaignFullLifecycle walks a campaign from submission through
// moderation, donations, the funded flip, a withdrawal and final stats.
func TestCampaignFullLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)
	creator := uuid.New()
	donor := uuid.New()
	admin := uuid.New()

	// Submit (no time limit, so approval activates it immediately)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/campaigns", creator, "", map[string]any{
		"title":         "Village Well",
		"description":   "Clean water",
		"amount_needed": "1000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	campaignID := created["id"].(string)
	assert.Equal(t, "PENDING", created["status"])
	assert.Equal(t, false, created["is_active"])

	campaignPath := "/api/v1/campaigns/" + campaignID

	// Donations are rejected while pending
	rec = doJSON(t, router, http.MethodPost, campaignPath+"/donations", donor, "", map[string]any{
		"amount": "100",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Moderation requires the admin role
	rec = doJSON(t, router, http.MethodPatch, campaignPath+"/status", creator, "", map[string]any{
		"status": "APPROVED",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, campaignPath+"/status", admin, "admin", map[string]any{
		"status": "APPROVED",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ACTIVE", decodeBody(t, rec)["status"])

	// Creator self-donation is rejected
	rec = doJSON(t, router, http.MethodPost, campaignPath+"/donations", creator, "", map[string]any{
		"amount": "10",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// A donation below the goal keeps the campaign active
	rec = doJSON(t, router, http.MethodPost, campaignPath+"/donations", donor, "", map[string]any{
		"amount": "400",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "ACTIVE", body["status"])
	assert.Equal(t, "400", body["amount_received"])
	assert.Equal(t, float64(40), body["progress_percentage"])

	// The goal-crossing donation flips the campaign to FUNDED
	rec = doJSON(t, router, http.MethodPost, campaignPath+"/donations", donor, "", map[string]any{
		"amount": "600",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	assert.Equal(t, "FUNDED", body["status"])
	assert.Equal(t, false, body["is_active"])

	// Further donations bounce off the closed campaign
	rec = doJSON(t, router, http.MethodPost, campaignPath+"/donations", donor, "", map[string]any{
		"amount": "5",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Only the creator may withdraw
	rec = doJSON(t, router, http.MethodPost, campaignPath+"/withdrawals", donor, "", map[string]any{
		"amount":      "100",
		"destination": "PT50-0002-0123",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, campaignPath+"/withdrawals", creator, "", map[string]any{
		"amount":      "100",
		"destination": "PT50-0002-0123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	assert.Equal(t, "100", body["total_withdrawn"])
	assert.Equal(t, "900", body["withdrawable_amount"])

	// Over-withdrawal is rejected
	rec = doJSON(t, router, http.MethodPost, campaignPath+"/withdrawals", creator, "", map[string]any{
		"amount":      "901",
		"destination": "PT50-0002-0123",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Detail view carries the feeds
	rec = doJSON(t, router, http.MethodGet, campaignPath, donor, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody(t, rec)
	assert.Len(t, detail["donations"], 2)
	assert.Len(t, detail["withdrawals"], 1)
	assert.NotEmpty(t, detail["events"])

	// Stats reflect the rollups
	rec = doJSON(t, router, http.MethodGet, "/api/v1/stats", donor, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decodeBody(t, rec)
	assert.Equal(t, float64(1), overview["total_campaigns"])
	assert.Equal(t, "1000", overview["total_raised"])
	assert.Equal(t, "100", overview["total_withdrawn"])
}

func TestModerationReject(t *testing.T) {
	router, _ := newTestRouter(t)
	creator := uuid.New()
	admin := uuid.New()

	end := time.Now().Add(7 * 24 * time.Hour).Format(time.RFC3339)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/campaigns", creator, "", map[string]any{
		"title":           "Sketchy",
		"amount_needed":   "500",
		"has_time_limit":  true,
		"time_limit_type": "FIXED",
		"end_date":        end,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, router, http.MethodPatch, "/api/v1/campaigns/"+id+"/status", admin, "admin", map[string]any{
		"status": "REJECTED",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REJECTED", decodeBody(t, rec)["status"])

	// Re-moderating a settled campaign fails
	rec = doJSON(t, router, http.MethodPatch, "/api/v1/campaigns/"+id+"/status", admin, "admin", map[string]any{
		"status": "APPROVED",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// The creator can clean it up
	rec = doJSON(t, router, http.MethodDelete, "/api/v1/campaigns/"+id, creator, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/campaigns/"+id, creator, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCampaignValidation(t *testing.T) {
	router, _ := newTestRouter(t)
	creator := uuid.New()

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "missing title",
			body: map[string]any{"amount_needed": "100"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "malformed amount",
			body: map[string]any{"title": "X", "amount_needed": "not-a-number"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "zero goal",
			body: map[string]any{"title": "X", "amount_needed": "0"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "time limit without end date",
			body: map[string]any{"title": "X", "amount_needed": "100", "has_time_limit": true},
			want: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/campaigns", creator, "", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestListFilters(t *testing.T) {
	router, _ := newTestRouter(t)
	creatorA := uuid.New()
	creatorB := uuid.New()

	for i, creator := range []uuid.UUID{creatorA, creatorA, creatorB} {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/campaigns", creator, "", map[string]any{
			"title":         fmt.Sprintf("Campaign %d", i),
			"amount_needed": "100",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/campaigns?creator_id="+creatorA.String(), creatorA, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["total"])

	rec = doJSON(t, router, http.MethodGet, "/api/v1/campaigns?status=PENDING", creatorA, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decodeBody(t, rec)["total"])

	rec = doJSON(t, router, http.MethodGet, "/api/v1/campaigns?status=BOGUS", creatorA, "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUnknownCampaignIs404(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/campaigns/"+uuid.NewString(), uuid.New(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/campaigns/not-a-uuid", uuid.New(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
