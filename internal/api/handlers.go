package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/walletworks/concierge/internal/agent"
	"github.com/walletworks/concierge/internal/api/respond"
	"github.com/walletworks/concierge/internal/gateway"
	"github.com/walletworks/concierge/internal/model"
	"github.com/walletworks/concierge/internal/store"
)

// Handlers bundles the HTTP transport for the whole service.
type Handlers struct {
	store    store.Store
	agent    *agent.Agent
	gateway  *gateway.Service
	sessions *Sessions
	log      zerolog.Logger
}

func NewHandlers(st store.Store, ag *agent.Agent, gw *gateway.Service, sessions *Sessions, log zerolog.Logger) *Handlers {
	return &Handlers{store: st, agent: ag, gateway: gw, sessions: sessions, log: log}
}

// Login POST /login — phone-number login issuing a session token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		respond.WriteBadRequest(w, "phone required")
		return
	}
	user, err := h.store.Users().GetByPhone(r.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "user not found")
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	token := h.sessions.Issue(user.UserID)
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}

// Chat POST /agent/chat — one conversation turn. The session token travels
// in the body, matching the client contract.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token   string `json:"token"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	userID, ok := h.sessions.Resolve(req.Token)
	if !ok {
		respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "reason": "invalid session token"})
		return
	}
	resp := h.agent.HandleMessage(r.Context(), userID, req.Message)
	respond.WriteJSON(w, http.StatusOK, resp)
}

// GatewayPay POST /gateway/pay — the encrypted payment boundary.
func (h *Handlers) GatewayPay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Payload == "" {
		respond.WriteBadRequest(w, "payload required")
		return
	}
	result := h.gateway.Pay(r.Context(), req.Payload)
	respond.WriteJSON(w, http.StatusOK, result)
}

// ListProducts GET /products
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.Products().List(r.Context())
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	if products == nil {
		products = []*model.Product{}
	}
	respond.WriteJSON(w, http.StatusOK, products)
}

// GetBalance GET /balances/{userId}
func (h *Handlers) GetBalance(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	user, err := h.store.Users().Get(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "user not found")
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"balance": user.Balance.StringFixed(2)})
}

// ListTransactions GET /transactions/{userId} — sent and received, newest
// first, enriched with display names.
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	userID := mux.Vars(r)["userId"]
	txs, err := h.store.Transactions().ListForUser(r.Context(), userID)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}

	type enrichedTx struct {
		*model.Transaction
		FromName string `json:"from_user,omitempty"`
		ToName   string `json:"to_user,omitempty"`
	}
	names := map[string]string{}
	out := make([]enrichedTx, 0, len(txs))
	for _, tx := range txs {
		e := enrichedTx{Transaction: tx}
		for _, pair := range []struct {
			id   string
			dest *string
		}{{tx.FromID, &e.FromName}, {tx.ToID, &e.ToName}} {
			if name, ok := names[pair.id]; ok {
				*pair.dest = name
				continue
			}
			if u, uErr := h.store.Users().Get(r.Context(), pair.id); uErr == nil {
				names[pair.id] = u.Name
				*pair.dest = u.Name
			}
		}
		out = append(out, e)
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// ListActivities GET /activities/{userId}?type=
func (h *Handlers) ListActivities(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	activities, err := h.store.Activities().ListForUser(r.Context(),
		mux.Vars(r)["userId"], r.URL.Query().Get("type"))
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	if activities == nil {
		activities = []*model.Activity{}
	}
	respond.WriteJSON(w, http.StatusOK, activities)
}

// Health GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respond.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) authorized(w http.ResponseWriter, r *http.Request) bool {
	token := BearerToken(r)
	if token == "" {
		respond.WriteUnauthorized(w, "missing bearer token")
		return false
	}
	if _, ok := h.sessions.Resolve(token); !ok {
		respond.WriteUnauthorized(w, "invalid token")
		return false
	}
	return true
}
