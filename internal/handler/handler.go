// Package handler содержит HTTP-обработчики API чат-магазина. Запросы
// поступают от чат-шлюза: он передаёт события пользователей и доставляет
// ответные представления.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/avasiliev/chatshop-system/internal/dialog"
	"github.com/avasiliev/chatshop-system/internal/middleware"
)

// Dialog определяет контракт диалогового слоя, используемый HTTP-обработчиками.
type Dialog interface {
	Start(ctx context.Context, userID int64, firstName, refCode string) (*dialog.View, error)
	HandleEvent(ctx context.Context, userID int64, text, token string) (*dialog.View, error)
}

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API чат-магазина.
type Handler struct {
	dialog      Dialog
	pinger      Pinger
	logger      *zap.Logger
	gatewayAuth *middleware.GatewayAuth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(d Dialog, pinger Pinger, logger *zap.Logger, auth *middleware.GatewayAuth) *Handler {
	return &Handler{
		dialog:      d,
		pinger:      pinger,
		logger:      logger,
		gatewayAuth: auth,
	}
}

type startRequest struct {
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	RefCode   string `json:"ref_code,omitempty"`
}

type eventRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text,omitempty"`
	Action string `json:"action,omitempty"`
}

// Start обрабатывает первое обращение пользователя к магазину.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.UserID <= 0 || req.FirstName == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	view, err := h.dialog.Start(r.Context(), req.UserID, req.FirstName, req.RefCode)
	if err != nil {
		h.logger.Error("start dialog error", zap.Int64("user_id", req.UserID), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeView(w, view)
}

// Event обрабатывает событие пользователя: текст или нажатие кнопки.
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.UserID <= 0 || (req.Text == "" && req.Action == "") {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	view, err := h.dialog.HandleEvent(r.Context(), req.UserID, req.Text, req.Action)
	if err != nil {
		h.logger.Error("handle event error", zap.Int64("user_id", req.UserID), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeView(w, view)
}

// Ping проверяет соединение с базой данных.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.Error("ping error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeView(w http.ResponseWriter, view *dialog.View) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(view); err != nil {
		h.logger.Error("encode view error", zap.Error(err))
	}
}
