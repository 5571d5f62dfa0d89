package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"sekonomy/internal/core/domain"
	"sekonomy/internal/core/service"
)

// HTTPHandler exposes the core operation surface to the routing/session
// layer. Authentication happens upstream: the verified platform account id
// arrives in the X-Account-ID header and is trusted as-is.
type HTTPHandler struct {
	accounts *service.AccountService
	exchange *service.ExchangeService
	gacha    *service.GachaService
	drops    *service.DropService
	craft    *service.CraftService
	sampler  *service.Sampler
}

func NewHTTPHandler(
	accounts *service.AccountService,
	exchange *service.ExchangeService,
	gacha *service.GachaService,
	drops *service.DropService,
	craft *service.CraftService,
	sampler *service.Sampler,
) *HTTPHandler {
	return &HTTPHandler{
		accounts: accounts,
		exchange: exchange,
		gacha:    gacha,
		drops:    drops,
		craft:    craft,
		sampler:  sampler,
	}
}

// Register wires every route onto the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/resources", h.Resources)
	mux.HandleFunc("/api/resources/upload", h.Upload)
	mux.HandleFunc("/api/resources/download", h.Download)
	mux.HandleFunc("/api/damage", h.Damage)
	mux.HandleFunc("/api/gacha/pull", h.GachaPull)
	mux.HandleFunc("/api/gacha/pull-many", h.GachaPullMany)
	mux.HandleFunc("/api/blueprints", h.Blueprints)
	mux.HandleFunc("/api/craft", h.Craft)
	mux.HandleFunc("/api/market", h.Market)
	mux.HandleFunc("/api/market/purchase", h.Purchase)
	mux.HandleFunc("/api/market/cancel", h.CancelListing)
	mux.HandleFunc("/api/profile", h.Profile)
	mux.HandleFunc("/api/ranking", h.Ranking)
	mux.HandleFunc("/api/catalog/refresh", h.RefreshCatalog)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) Resources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	items, err := h.accounts.GetInventory(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type itemAdjustRequest struct {
	ItemID   string  `json:"item_id"`
	Quantity float64 `json:"quantity"`
}

func (h *HTTPHandler) Upload(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.accounts.Deposit)
}

func (h *HTTPHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.accounts.Withdraw)
}

func (h *HTTPHandler) adjust(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, accountID, itemID string, quantity float64) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req itemAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	if err := op(r.Context(), accountID, req.ItemID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type damageRequest struct {
	RequestID string                `json:"request_id"`
	Tier      string                `json:"tier"`
	Events    []service.DamageEvent `json:"events"`
}

func (h *HTTPHandler) Damage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req damageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}

	drops, applied, err := h.drops.RecordBatch(r.Context(), req.RequestID, req.Events, req.Tier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"drops":   drops,
	})
}

func (h *HTTPHandler) GachaPull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	item, err := h.gacha.Pull(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

type gachaManyRequest struct {
	Count int `json:"count"`
}

func (h *HTTPHandler) GachaPullMany(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req gachaManyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	items, err := h.gacha.PullMany(r.Context(), accountID, req.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *HTTPHandler) Blueprints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	recipes, err := h.craft.Blueprints(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	type blueprintView struct {
		TargetItemID string             `json:"target_item_id"`
		Ingredients  map[string]float64 `json:"ingredients"`
	}
	views := make([]blueprintView, 0, len(recipes))
	for _, rec := range recipes {
		v := blueprintView{TargetItemID: rec.TargetItemID, Ingredients: map[string]float64{}}
		for _, ing := range rec.Ingredients {
			v.Ingredients[ing.ItemID] = ing.Quantity
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"blueprints": views})
}

type craftRequest struct {
	TargetItemID string `json:"target_item_id"`
}

func (h *HTTPHandler) Craft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req craftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	result, err := h.craft.Craft(r.Context(), accountID, req.TargetItemID)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"result": result})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

type createListingRequest struct {
	ItemID       string  `json:"item_id"`
	PricePerUnit float64 `json:"price_per_unit"`
	Quantity     int64   `json:"quantity"`
}

func (h *HTTPHandler) Market(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listMarket(w, r)
	case http.MethodPost:
		h.createListing(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) listMarket(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := domain.ListingFilter{
		ItemID: q.Get("item"),
		Limit:  intParam(q.Get("limit")),
		Offset: intParam(q.Get("offset")),
	}
	if q.Get("mine") == "true" {
		filter.SellerID = accountID
	} else {
		filter.ExcludeSeller = accountID
	}

	listings, err := h.exchange.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (h *HTTPHandler) createListing(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	id, err := h.exchange.CreateListing(r.Context(), accountID, req.ItemID, req.PricePerUnit, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"listing_id": id})
}

type purchaseRequest struct {
	RequestID string `json:"request_id"`
	ListingID int64  `json:"listing_id"`
	Quantity  int64  `json:"quantity"`
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	trade, err := h.exchange.Purchase(r.Context(), req.RequestID, accountID, req.ListingID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trade": trade})
}

type cancelRequest struct {
	ListingID int64 `json:"listing_id"`
	Quantity  int64 `json:"quantity"`
}

func (h *HTTPHandler) CancelListing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	if err := h.exchange.Cancel(r.Context(), accountID, req.ListingID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type profileRequest struct {
	Nickname string `json:"nickname"`
}

func (h *HTTPHandler) Profile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		acc, err := h.accounts.Profile(r.Context(), accountID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"account_id":   acc.ID,
			"nickname":     acc.Nickname,
			"balance":      acc.Balance,
			"total_damage": acc.TotalDamage,
		})
	case http.MethodPut:
		var req profileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrValidation)
			return
		}
		if err := h.accounts.UpdateNickname(r.Context(), accountID, req.Nickname); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) Ranking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := h.accounts.Ranking(r.Context(), intParam(r.URL.Query().Get("limit")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranking": entries})
}

func (h *HTTPHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.sampler.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": h.sampler.Version()})
}

func (h *HTTPHandler) accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-Account-ID")
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing account id", Code: "unauthenticated"})
		return "", false
	}
	return id, true
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error(), Code: domain.Code(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidRecipe),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientInventory),
		errors.Is(err, domain.ErrInsufficientQuantity),
		errors.Is(err, domain.ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNoSuchRecipe):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicateRequest),
		errors.Is(err, domain.ErrConcurrency):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func intParam(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
