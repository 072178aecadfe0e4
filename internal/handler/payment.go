package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/artattoo/payments-relay/internal/domain"
	"github.com/artattoo/payments-relay/internal/logging"
)

type checkoutService interface {
	CreateCheckout(ctx context.Context, appointmentID string) (*domain.Preference, error)
}

type confirmService interface {
	ConfirmPayment(ctx context.Context, appointmentID, paymentID string) domain.ConfirmResult
}

type PaymentHandler struct {
	checkout checkoutService
	confirm  confirmService
}

func NewPaymentHandler(checkout checkoutService, confirm confirmService) *PaymentHandler {
	return &PaymentHandler{checkout: checkout, confirm: confirm}
}

// flexID accepts a JSON string or number; the mobile client historically
// sent appointment ids as numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type createPaymentRequest struct {
	AppointmentID flexID `json:"appointment_id"`
}

type createPaymentResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req createPaymentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		log.Warn("failed to parse create payment body", "error", err)
		RespondAppError(w, ErrInvalidBody)
		return
	}
	if req.AppointmentID == "" {
		RespondAppError(w, ErrAppointmentIDRequired)
		return
	}

	// Outbound work survives a client disconnect: the preference is created
	// at the provider either way, so finish and answer whoever is listening.
	ctx := context.WithoutCancel(r.Context())

	pref, err := h.checkout.CreateCheckout(ctx, string(req.AppointmentID))
	if err != nil {
		log.Error("create checkout failed", "appointment_id", req.AppointmentID, "error", err)
		RespondAppError(w, ErrCreatePreference)
		return
	}

	RespondJSON(w, http.StatusOK, createPaymentResponse{
		ID:        pref.ID,
		InitPoint: pref.RedirectURL,
	})
}

type confirmPaymentRequest struct {
	AppointmentID flexID `json:"appointment_id"`
	PaymentID     flexID `json:"payment_id"`
}

type confirmPaymentResponse struct {
	Paid      bool   `json:"paid"`
	Status    string `json:"status"`
	PaymentID string `json:"payment_id,omitempty"`
}

func (h *PaymentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req confirmPaymentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		log.Warn("failed to parse confirm payment body", "error", err)
		RespondAppError(w, ErrInvalidBody)
		return
	}
	if req.AppointmentID == "" {
		RespondAppError(w, ErrAppointmentIDRequired)
		return
	}

	ctx := context.WithoutCancel(r.Context())

	result := h.confirm.ConfirmPayment(ctx, string(req.AppointmentID), string(req.PaymentID))

	log.Info("payment confirm resolved",
		"appointment_id", req.AppointmentID,
		"paid", result.Paid,
		"payment_status", result.Status,
	)

	RespondJSON(w, http.StatusOK, confirmPaymentResponse{
		Paid:      result.Paid,
		Status:    result.Status,
		PaymentID: result.PaymentID,
	})
}
