package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/artattoo/payments-relay/internal/domain"
	"github.com/artattoo/payments-relay/internal/signature"
)

var baseCreated = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Payment builds a provider payment snapshot. age shifts the creation time
// backwards, so Payment(..., 0) is the most recent.
func Payment(id string, status domain.PaymentStatus, externalRef string, age time.Duration) domain.PaymentRecord {
	return domain.PaymentRecord{
		ID:                id,
		Status:            status,
		ExternalReference: externalRef,
		PayerEmail:        "payer@example.com",
		DateCreated:       baseCreated.Add(-age),
	}
}

// SignedWebhookRequest builds a provider-style webhook delivery: data id and
// type on the query string, signature headers computed from secret.
func SignedWebhookRequest(t *testing.T, secret, dataID, notifType string) *http.Request {
	t.Helper()

	requestID := "req-" + dataID
	ts := strconv.FormatInt(baseCreated.Unix(), 10)
	manifest := signature.Manifest(signature.NormalizeDataID(dataID), requestID, ts)
	v1 := signature.Sign([]byte(secret), manifest)

	target := fmt.Sprintf("/webhook/mercadopago?data.id=%s&type=%s", dataID, notifType)
	req := httptest.NewRequest(http.MethodPost, target, nil)
	req.Header.Set("x-request-id", requestID)
	req.Header.Set("x-signature", fmt.Sprintf("ts=%s,v1=%s", ts, v1))
	return req
}
