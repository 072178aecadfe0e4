package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artattoo/payments-relay/internal/backend"
	"github.com/artattoo/payments-relay/internal/mercadopago"
	"github.com/artattoo/payments-relay/internal/service"
	"github.com/artattoo/payments-relay/internal/signature"
	"github.com/artattoo/payments-relay/internal/testutil"
)

const testWebhookSecret = "test-secret-key"

type mockNotifications struct {
	calls []struct{ dataID, notifType string }
}

func (m *mockNotifications) ProcessNotification(_ context.Context, dataID, notifType string) {
	m.calls = append(m.calls, struct{ dataID, notifType string }{dataID, notifType})
}

func newWebhookHandler() (*WebhookHandler, *mockNotifications) {
	notifications := &mockNotifications{}
	h := NewWebhookHandler(signature.NewVerifier(testWebhookSecret), notifications)
	return h, notifications
}

func TestReceiveMercadoPago_ValidSignature(t *testing.T) {
	h, notifications := newWebhookHandler()

	req := testutil.SignedWebhookRequest(t, testWebhookSecret, "123456789", "payment")
	rec := httptest.NewRecorder()
	h.ReceiveMercadoPago(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ok", rec.Body.String())
	require.Len(t, notifications.calls, 1)
	assert.Equal(t, "123456789", notifications.calls[0].dataID)
	assert.Equal(t, "payment", notifications.calls[0].notifType)
}

func TestReceiveMercadoPago_InvalidSignature(t *testing.T) {
	h, notifications := newWebhookHandler()

	req := testutil.SignedWebhookRequest(t, "some-other-secret", "123456789", "payment")
	rec := httptest.NewRecorder()
	h.ReceiveMercadoPago(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid signature", rec.Body.String())
	assert.Empty(t, notifications.calls, "unverified events must not be processed")
}

func TestReceiveMercadoPago_TamperedHash(t *testing.T) {
	h, notifications := newWebhookHandler()

	req := testutil.SignedWebhookRequest(t, testWebhookSecret, "123456789", "payment")
	sig := req.Header.Get("x-signature")
	last := sig[len(sig)-1]
	flip := byte('0')
	if last == '0' {
		flip = '1'
	}
	req.Header.Set("x-signature", sig[:len(sig)-1]+string(flip))

	rec := httptest.NewRecorder()
	h.ReceiveMercadoPago(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid signature", rec.Body.String())
	assert.Empty(t, notifications.calls)
}

func TestReceiveMercadoPago_MissingPieces(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(r *http.Request)
		wantBody string
	}{
		{
			name:     "missing signature header",
			mutate:   func(r *http.Request) { r.Header.Del("x-signature") },
			wantBody: "Invalid request",
		},
		{
			name:     "missing request id header",
			mutate:   func(r *http.Request) { r.Header.Del("x-request-id") },
			wantBody: "Invalid request",
		},
		{
			name: "missing data id",
			mutate: func(r *http.Request) {
				r.URL.RawQuery = "type=payment"
			},
			wantBody: "Invalid request",
		},
		{
			name: "signature without ts",
			mutate: func(r *http.Request) {
				r.Header.Set("x-signature", "v1=deadbeef")
			},
			wantBody: "Invalid signature",
		},
		{
			name: "signature without v1",
			mutate: func(r *http.Request) {
				r.Header.Set("x-signature", "ts=1704067200")
			},
			wantBody: "Invalid signature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, notifications := newWebhookHandler()
			req := testutil.SignedWebhookRequest(t, testWebhookSecret, "123456789", "payment")
			tt.mutate(req)

			rec := httptest.NewRecorder()
			h.ReceiveMercadoPago(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Empty(t, notifications.calls)
		})
	}
}

func TestReceiveMercadoPago_DataIDFromBody(t *testing.T) {
	h, notifications := newWebhookHandler()

	ts := "1704067200"
	requestID := "req-body-fallback"
	manifest := signature.Manifest("123456789", requestID, ts)
	v1 := signature.Sign([]byte(testWebhookSecret), manifest)

	body := `{"type":"payment","data":{"id":123456789}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/mercadopago", strings.NewReader(body))
	req.Header.Set("x-request-id", requestID)
	req.Header.Set("x-signature", fmt.Sprintf("ts=%s,v1=%s", ts, v1))

	rec := httptest.NewRecorder()
	h.ReceiveMercadoPago(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, notifications.calls, 1)
	assert.Equal(t, "123456789", notifications.calls[0].dataID)
}

func TestReceiveMercadoPago_AlphanumericIDNormalized(t *testing.T) {
	h, notifications := newWebhookHandler()

	// The provider signs the lowercase form even when the delivery URL
	// carries the original casing.
	ts := "1704067200"
	requestID := "req-norm"
	manifest := signature.Manifest("abc123", requestID, ts)
	v1 := signature.Sign([]byte(testWebhookSecret), manifest)

	req := httptest.NewRequest(http.MethodPost, "/webhook/mercadopago?data.id=ABC123&type=payment", nil)
	req.Header.Set("x-request-id", requestID)
	req.Header.Set("x-signature", fmt.Sprintf("ts=%s,v1=%s", ts, v1))

	rec := httptest.NewRecorder()
	h.ReceiveMercadoPago(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, notifications.calls, 1)
	assert.Equal(t, "abc123", notifications.calls[0].dataID)
}

// End-to-end path: verified webhook, provider lookup, downstream notice.
func TestReceiveMercadoPago_ApprovedPaymentFlowsDownstream(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payments/777", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": 777,
			"status": "approved",
			"external_reference": "42",
			"payer": {"email": "payer@example.com"},
			"date_created": "2026-03-01T12:00:00Z"
		}`)
	}))
	defer provider.Close()

	var downstream []map[string]any
	appointmentBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/mercadopago", r.URL.Path)
		require.Equal(t, "secret-token", r.Header.Get("X-Webhook-Token"))
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(b, &payload))
		downstream = append(downstream, payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer appointmentBackend.Close()

	notifications := service.NewNotificationService(
		mercadopago.NewClient(provider.URL, "test-token", 5*time.Second),
		backend.NewClient(appointmentBackend.URL, "secret-token", 5*time.Second),
	)
	h := NewWebhookHandler(signature.NewVerifier(testWebhookSecret), notifications)

	req := testutil.SignedWebhookRequest(t, testWebhookSecret, "777", "payment")
	rec := httptest.NewRecorder()
	h.ReceiveMercadoPago(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ok", rec.Body.String())

	require.Len(t, downstream, 1, "exactly one downstream POST expected")
	assert.Equal(t, "42", downstream[0]["appointment_id"])
	assert.Equal(t, "approved", downstream[0]["status"])
	assert.Equal(t, "777", downstream[0]["payment_id"])
	assert.Equal(t, "payer@example.com", downstream[0]["payer_email"])
}

func TestReceiveMercadoPago_DownstreamFailureStillOk(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 777, "status": "approved", "external_reference": "42",
			"payer": {"email": ""}, "date_created": "2026-03-01T12:00:00Z"}`)
	}))
	defer provider.Close()

	appointmentBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer appointmentBackend.Close()

	notifications := service.NewNotificationService(
		mercadopago.NewClient(provider.URL, "test-token", 5*time.Second),
		backend.NewClient(appointmentBackend.URL, "", 5*time.Second),
	)
	h := NewWebhookHandler(signature.NewVerifier(testWebhookSecret), notifications)

	req := testutil.SignedWebhookRequest(t, testWebhookSecret, "777", "payment")
	rec := httptest.NewRecorder()
	h.ReceiveMercadoPago(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "downstream failure must not trigger provider retries")
	assert.Equal(t, "Ok", rec.Body.String())
}
