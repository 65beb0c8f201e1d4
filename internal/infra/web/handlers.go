package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
)

type orderCreateRequest struct {
	Plan     string `json:"plan"`
	Cycle    string `json:"cycle"`
	Provider string `json:"provider"`
}

type orderCreateResponse struct {
	OrderID      string `json:"orderId"`
	Status       string `json:"status"`
	ArtifactKind string `json:"artifactKind"`
	Artifact     string `json:"artifact"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req orderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	provider, err := model.ParseProvider(req.Provider)
	if err != nil {
		http.Error(w, "Unknown provider", http.StatusBadRequest)
		return
	}

	order, artifact, err := s.orders.CreateOrder(ctx, UserID(ctx), req.Plan, req.Cycle, provider)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrNotFound):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrConfig):
			http.Error(w, "Provider not available", http.StatusBadRequest)
		case errors.Is(err, domain.ErrProviderAPI):
			// The pending order exists and is retryable; hand back its id so
			// the client can poll or retry the checkout.
			writeJSON(w, http.StatusBadGateway, struct {
				OrderID string `json:"orderId"`
				Error   string `json:"error"`
			}{OrderID: order.ID, Error: "Payment provider unavailable"})
		default:
			http.Error(w, "Failed to create order", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, orderCreateResponse{
		OrderID:      order.ID,
		Status:       string(order.Status),
		ArtifactKind: string(artifact.Kind),
		Artifact:     artifact.Value,
	})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := s.orders.GetStatus(ctx, UserID(ctx), chi.URLParam(r, "orderID"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to get order", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// captureOrder is the approval-flow return leg: the client lands back from
// the provider and asks us to finalize. Racing the webhook is fine; whoever
// loses sees already_handled.
func (s *Server) captureOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := s.orders.CaptureOnReturn(ctx, UserID(ctx), chi.URLParam(r, "orderID"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, domain.ErrNotCapturable):
			http.Error(w, "Order provider does not support capture", http.StatusBadRequest)
		case errors.Is(err, domain.ErrProviderAPI):
			http.Error(w, "Payment provider unavailable", http.StatusBadGateway)
		case errors.Is(err, domain.ErrAmountMismatch):
			http.Error(w, "Payment held for review", http.StatusConflict)
		default:
			http.Error(w, "Failed to capture order", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Applied bool   `json:"applied"`
		Reason  string `json:"reason,omitempty"`
	}{Applied: res.Applied, Reason: res.Reason})
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sub, err := s.subs.GetByUser(ctx, UserID(ctx))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to get subscription", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
