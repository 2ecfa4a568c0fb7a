package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	models "loyalty-cart/model"
	"loyalty-cart/service"
)

// ActorHeader carries the caller's email for role-gated routes.
const ActorHeader = "X-Customer-Email"

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc service.ServiceInterface
	log *zap.Logger

	// AdminRequiresRole gates /api/admin on the caller's role.
	AdminRequiresRole bool
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: s, log: log}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(h.requestLogger)
	api := r.PathPrefix("/api").Subrouter()

	// Rewards
	api.HandleFunc("/rewards", h.GetRewards).Methods("GET")
	api.HandleFunc("/rewards/redeem", h.Redeem).Methods("POST")
	api.HandleFunc("/rewards/set", h.SetRewards).Methods("PATCH")
	api.HandleFunc("/rewards/refund", h.Refund).Methods("POST")
	api.HandleFunc("/rewards/credit", h.Credit).Methods("POST")

	// Auth
	api.HandleFunc("/auth/register", h.Register).Methods("POST")
	api.HandleFunc("/auth/login", h.Login).Methods("POST")
	api.HandleFunc("/password/change", h.ChangePassword).Methods("POST")

	// Admin
	admin := api.PathPrefix("/admin").Subrouter()
	if h.AdminRequiresRole {
		admin.Use(h.requireRole(models.RoleAdmin))
	}
	admin.HandleFunc("/customers", h.ListCustomers).Methods("GET")

	api.HandleFunc("/health", h.Health).Methods("GET")
}

// --- request / response shapes ---
type pointsReq struct {
	Email  string `json:"email"`
	Points *int64 `json:"points"`
}

type setRewardsReq struct {
	Email   string `json:"email"`
	Rewards *int64 `json:"rewards"`
}

type userResp struct {
	Message string      `json:"message"`
	User    models.User `json:"user"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

type errBody struct {
	Message string `json:"message"`
	Current *int64 `json:"current,omitempty"`
}

func statusFor(k models.Kind) int {
	switch k {
	case models.KindValidation, models.KindInsufficientPoints:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindUnauthorized:
		return http.StatusUnauthorized
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceErr maps a classified error to its status. Server errors are
// logged and reported without internals.
func (h *Handler) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(models.KindOf(err))
	body := errBody{Message: "Server error"}
	var me *models.Error
	if errors.As(err, &me) {
		body.Message = me.Message
		body.Current = me.Current
	}
	if code == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, code, body)
}

func decodePoints(w http.ResponseWriter, r *http.Request) (pointsReq, bool) {
	var req pointsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Points == nil {
		writeErr(w, http.StatusBadRequest, "Email and points (number) required")
		return req, false
	}
	return req, true
}

// --- Handler ---

// GetRewards handles GET /api/rewards?email=...
func (h *Handler) GetRewards(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeErr(w, http.StatusBadRequest, "Email required")
		return
	}
	pts, err := h.svc.GetRewards(r.Context(), email)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"rewards": pts})
}

// Redeem handles POST /api/rewards/redeem
// body: { "email": "...", "points": 100 }
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePoints(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Redeem(r.Context(), req.Email, *req.Points)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResp{Message: "Redeemed", User: u})
}

// Refund handles POST /api/rewards/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePoints(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Refund(r.Context(), req.Email, *req.Points)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResp{Message: "Refunded", User: u})
}

// Credit handles POST /api/rewards/credit (points earned by an order)
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePoints(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Credit(r.Context(), req.Email, *req.Points)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResp{Message: "Credited", User: u})
}

// SetRewards handles PATCH /api/rewards/set
// body: { "email": "...", "rewards": 150 }
func (h *Handler) SetRewards(w http.ResponseWriter, r *http.Request) {
	var req setRewardsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Rewards == nil {
		writeErr(w, http.StatusBadRequest, "Email and rewards (number) required")
		return
	}
	pts, err := h.svc.SetRewards(r.Context(), req.Email, *req.Rewards)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Updated", "rewards": pts})
}

// Register handles POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResp{Message: "User registered successfully", User: u})
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResp{Message: "Login successful", User: u})
}

// ChangePassword handles POST /api/password/change
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req service.ChangePasswordInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.svc.ChangePassword(r.Context(), req); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// ListCustomers handles GET /api/admin/customers
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.ListCustomers(r.Context())
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// Health handles GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	hs := h.svc.Health(r.Context())
	code := http.StatusOK
	if !hs.OK() {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, hs)
}
