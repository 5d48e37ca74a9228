package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fundflow/fundflow-backend/internal/domain"
	"github.com/fundflow/fundflow-backend/internal/usecase/campaign"
	"github.com/fundflow/fundflow-backend/internal/usecase/funding"
	"github.com/fundflow/fundflow-backend/internal/usecase/payout"
	"github.com/fundflow/fundflow-backend/internal/usecase/stats"
)

var validate = validator.New()

// Handler wires the usecases to the HTTP transport
type Handler struct {
	Campaigns *campaign.Service
	Funding   *funding.Service
	Payout    *payout.Service
	Stats     *stats.Service
	Logger    *logrus.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(campaigns *campaign.Service, fundingSvc *funding.Service, payoutSvc *payout.Service, statsSvc *stats.Service, logger *logrus.Logger) *Handler {
	return &Handler{
		Campaigns: campaigns,
		Funding:   fundingSvc,
		Payout:    payoutSvc,
		Stats:     statsSvc,
		Logger:    logger,
	}
}

// Router assembles the full route table
func (h *Handler) Router(apiToken string) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(MetricsMiddleware)
	apiV1.Use(AuthMiddleware(apiToken))

	apiV1.HandleFunc("/campaigns", h.CreateCampaign).Methods("POST")
	apiV1.HandleFunc("/campaigns", h.ListCampaigns).Methods("GET")
	apiV1.HandleFunc("/campaigns/{id}", h.GetCampaign).Methods("GET")
	apiV1.HandleFunc("/campaigns/{id}", h.DeleteCampaign).Methods("DELETE")
	apiV1.HandleFunc("/campaigns/{id}/donations", h.Donate).Methods("POST")
	apiV1.HandleFunc("/campaigns/{id}/withdrawals", h.Withdraw).Methods("POST")
	apiV1.HandleFunc("/campaigns/{id}/status", h.SetStatus).Methods("PATCH")
	apiV1.HandleFunc("/stats", h.Overview).Methods("GET")

	return r
}

type createCampaignRequest struct {
	Title         string     `json:"title" validate:"required"`
	Description   string     `json:"description"`
	PhotoPath     string     `json:"photo_path"`
	DocumentPath  string     `json:"document_path"`
	AmountNeeded  string     `json:"amount_needed" validate:"required"`
	HasTimeLimit  bool       `json:"has_time_limit"`
	TimeLimitType string     `json:"time_limit_type" validate:"omitempty,oneof=FIXED FLEXIBLE"`
	EndDate       *time.Time `json:"end_date"`
}

type donateRequest struct {
	Amount string `json:"amount" validate:"required"`
}

type withdrawRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Destination string `json:"destination" validate:"required"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}

// campaignResponse is the wire shape of a campaign snapshot plus the
// derived read-only fields
type campaignResponse struct {
	ID                 uuid.UUID  `json:"id"`
	CreatorID          uuid.UUID  `json:"creator_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	PhotoPath          string     `json:"photo_path,omitempty"`
	DocumentPath       string     `json:"document_path,omitempty"`
	AmountNeeded       string     `json:"amount_needed"`
	AmountReceived     string     `json:"amount_received"`
	TotalWithdrawn     string     `json:"total_withdrawn"`
	WithdrawableAmount string     `json:"withdrawable_amount"`
	ProgressPercentage int        `json:"progress_percentage"`
	DaysRemaining      int        `json:"days_remaining"`
	Status             string     `json:"status"`
	HasTimeLimit       bool       `json:"has_time_limit"`
	TimeLimitType      string     `json:"time_limit_type,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
}

type donationResponse struct {
	ID        uuid.UUID `json:"id"`
	DonorID   uuid.UUID `json:"donor_id"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type withdrawalResponse struct {
	ID          uuid.UUID `json:"id"`
	Amount      string    `json:"amount"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
}

type eventResponse struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func toCampaignResponse(p campaign.Projection) campaignResponse {
	c := p.Campaign
	return campaignResponse{
		ID:                 c.ID,
		CreatorID:          c.CreatorID,
		Title:              c.Title,
		Description:        c.Description,
		PhotoPath:          c.PhotoPath,
		DocumentPath:       c.DocumentPath,
		AmountNeeded:       c.AmountNeeded.String(),
		AmountReceived:     c.AmountReceived.String(),
		TotalWithdrawn:     c.TotalWithdrawn.String(),
		WithdrawableAmount: p.WithdrawableAmount.String(),
		ProgressPercentage: p.ProgressPercentage,
		DaysRemaining:      p.DaysRemaining,
		Status:             string(c.Status),
		HasTimeLimit:       c.HasTimeLimit,
		TimeLimitType:      string(c.TimeLimitType),
		EndDate:            c.EndDate,
		IsActive:           c.IsActive,
		CreatedAt:          c.CreatedAt,
	}
}

// CreateCampaign handles POST /campaigns
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "caller identity required")
		return
	}

	var req createCampaignRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.AmountNeeded)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, "malformed goal amount")
		return
	}

	c, err := h.Campaigns.Create(r.Context(), campaign.CreateInput{
		CreatorID:     creatorID,
		Title:         req.Title,
		Description:   req.Description,
		PhotoPath:     req.PhotoPath,
		DocumentPath:  req.DocumentPath,
		AmountNeeded:  amount,
		HasTimeLimit:  req.HasTimeLimit,
		TimeLimitType: domain.TimeLimitType(req.TimeLimitType),
		EndDate:       req.EndDate,
	})
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, snapshotResponse(c))
}

// ListCampaigns handles GET /campaigns
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter domain.CampaignFilter
	if raw := q.Get("status"); raw != "" {
		status := domain.Status(raw)
		if !domain.ValidStatus(status) {
			respondWithError(w, http.StatusUnprocessableEntity, "unknown status filter")
			return
		}
		filter.Status = &status
	}
	if raw := q.Get("creator_id"); raw != "" {
		creatorID, err := uuid.Parse(raw)
		if err != nil {
			respondWithError(w, http.StatusUnprocessableEntity, "malformed creator id")
			return
		}
		filter.CreatorID = &creatorID
	}

	page := domain.Page{}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		page.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		page.Offset = offset
	}

	result, err := h.Campaigns.List(r.Context(), filter, domain.CampaignSort(q.Get("sort")), page)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	campaigns := make([]campaignResponse, 0, len(result.Campaigns))
	for _, p := range result.Campaigns {
		campaigns = append(campaigns, toCampaignResponse(p))
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"campaigns": campaigns,
		"total":     result.Total,
	})
}

// GetCampaign handles GET /campaigns/{id}
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	detail, err := h.Campaigns.Get(r.Context(), id)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	donations := make([]donationResponse, 0, len(detail.Donations))
	for _, d := range detail.Donations {
		donations = append(donations, donationResponse{
			ID:        d.ID,
			DonorID:   d.DonorID,
			Amount:    d.Amount.String(),
			CreatedAt: d.CreatedAt,
		})
	}
	withdrawals := make([]withdrawalResponse, 0, len(detail.Withdrawals))
	for _, wd := range detail.Withdrawals {
		withdrawals = append(withdrawals, withdrawalResponse{
			ID:          wd.ID,
			Amount:      wd.Amount.String(),
			Destination: wd.Destination,
			CreatedAt:   wd.CreatedAt,
		})
	}
	events := make([]eventResponse, 0, len(detail.Events))
	for _, e := range detail.Events {
		events = append(events, eventResponse{
			Kind:      string(e.Kind),
			Message:   e.Message,
			CreatedAt: e.CreatedAt,
		})
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"campaign":    toCampaignResponse(detail.Projection),
		"donations":   donations,
		"withdrawals": withdrawals,
		"events":      events,
	})
}

// DeleteCampaign handles DELETE /campaigns/{id}
func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	requesterID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "caller identity required")
		return
	}

	if err := h.Campaigns.Delete(r.Context(), id, requesterID); err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Donate handles POST /campaigns/{id}/donations
func (h *Handler) Donate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	donorID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "caller identity required")
		return
	}

	var req donateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, "malformed donation amount")
		return
	}

	snapshot, err := h.Funding.Donate(r.Context(), funding.DonateInput{
		CampaignID: id,
		DonorID:    donorID,
		Amount:     amount,
	})
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, snapshotResponse(snapshot))
}

// Withdraw handles POST /campaigns/{id}/withdrawals
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	requesterID, ok := callerID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "caller identity required")
		return
	}

	var req withdrawRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, "malformed withdrawal amount")
		return
	}

	snapshot, err := h.Payout.Withdraw(r.Context(), payout.WithdrawInput{
		CampaignID:  id,
		RequesterID: requesterID,
		Amount:      amount,
		Destination: req.Destination,
	})
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, snapshotResponse(snapshot))
}

// SetStatus handles PATCH /campaigns/{id}/status — the admin moderation
// override for pending campaigns
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !isAdmin(r) {
		respondWithError(w, http.StatusForbidden, "admin role required")
		return
	}

	var req setStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	snapshot, err := h.Campaigns.AdminSetStatus(r.Context(), id, domain.Status(req.Status))
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, snapshotResponse(snapshot))
}

// Overview handles GET /stats
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Stats.Overview(r.Context())
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	byStatus := make(map[string]int, len(overview.ByStatus))
	for status, count := range overview.ByStatus {
		byStatus[string(status)] = count
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"total_campaigns":  overview.TotalCampaigns,
		"active_campaigns": overview.ActiveCampaigns,
		"total_raised":     overview.TotalRaised.String(),
		"total_withdrawn":  overview.TotalWithdrawn.String(),
		"by_status":        byStatus,
	})
}

// snapshotResponse projects a bare snapshot for responses that carry no
// separate projection (derived fields computed here, on read)
func snapshotResponse(c *domain.Campaign) campaignResponse {
	return toCampaignResponse(campaign.ProjectNow(c))
}

// respondWithDomainError maps the domain error kinds onto HTTP statuses
func (h *Handler) respondWithDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCampaignNotFound):
		respondWithError(w, http.StatusNotFound, "campaign not found")
	case errors.Is(err, domain.ErrNotOwner):
		respondWithError(w, http.StatusForbidden, "only the campaign creator may do this")
	case errors.Is(err, domain.ErrValidation):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvariant):
		// A correctness defect, not a user error: alert loudly, answer vaguely
		h.Logger.WithError(err).Error("ledger invariant violation")
		respondWithError(w, http.StatusInternalServerError, "internal error")
	case errors.Is(err, domain.ErrTransient):
		respondWithError(w, http.StatusServiceUnavailable, "store temporarily unavailable, retry")
	default:
		h.Logger.WithError(err).Error("unhandled error")
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses the {id} route variable
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusNotFound, "malformed campaign id")
		return uuid.Nil, false
	}
	return id, true
}

// decodeAndValidate unmarshals the body into req and runs the validator
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
