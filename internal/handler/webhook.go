package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/artattoo/payments-relay/internal/logging"
	"github.com/artattoo/payments-relay/internal/signature"
)

type notificationService interface {
	ProcessNotification(ctx context.Context, dataID, notifType string)
}

type WebhookHandler struct {
	verifier      *signature.Verifier
	notifications notificationService
}

func NewWebhookHandler(verifier *signature.Verifier, notifications notificationService) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, notifications: notifications}
}

type webhookBody struct {
	Data struct {
		ID flexID `json:"id"`
	} `json:"data"`
	Type string `json:"type"`
}

// ReceiveMercadoPago verifies and processes a provider webhook. The data id
// and type come from the query string, falling back to the body; the query
// id is what the provider signs. Replies are plain text per the provider
// contract, and any status other than 2xx triggers provider redelivery, so
// failures after a verified signature still answer 200.
func (h *WebhookHandler) ReceiveMercadoPago(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in webhook handler", "error", rec, "stack", string(debug.Stack()))
			RespondText(w, http.StatusInternalServerError, "Internal server error")
		}
	}()

	xSignature := r.Header.Get("x-signature")
	xRequestID := r.Header.Get("x-request-id")

	var body webhookBody
	if b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)); err == nil && len(b) > 0 {
		// Body parse failures are not fatal; the query string is authoritative.
		if err := json.Unmarshal(b, &body); err != nil {
			log.Debug("unparseable webhook body", "error", err)
		}
	}

	query := r.URL.Query()
	dataID := query.Get("data.id")
	if dataID == "" {
		dataID = string(body.Data.ID)
	}
	dataID = signature.NormalizeDataID(dataID)

	notifType := query.Get("type")
	if notifType == "" {
		notifType = body.Type
	}

	if xSignature == "" || xRequestID == "" || dataID == "" {
		log.Warn("incomplete webhook data",
			"has_signature", xSignature != "",
			"has_request_id", xRequestID != "",
			"has_data_id", dataID != "",
		)
		RespondText(w, http.StatusBadRequest, "Invalid request")
		return
	}

	header, err := signature.ParseHeader(xSignature)
	if err != nil {
		log.Warn("malformed x-signature header", "error", err)
		RespondText(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	result, ok := h.verifier.Verify(dataID, xRequestID, header)
	if !ok {
		attrs := []any{
			"received_hash", header.V1,
			"manifest", result.Manifest,
		}
		for mode, digest := range h.verifier.CandidateDigests(result.Manifest) {
			attrs = append(attrs, "calc_with_"+string(mode)+"_key", digest)
		}
		log.Warn("webhook signature verification failed", attrs...)
		RespondText(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	h.notifications.ProcessNotification(ctx, dataID, notifType)

	log.Info("webhook processed",
		"data_id", dataID,
		"request_id", xRequestID,
		"hmac_key_mode", result.KeyMode,
	)
	RespondText(w, http.StatusOK, "Ok")
}
