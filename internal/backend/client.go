// Package backend talks to the appointment backend: appointment lookup for
// checkout enrichment and the payment notice POST.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/artattoo/payments-relay/internal/domain"
	"github.com/artattoo/payments-relay/internal/logging"
)

const webhookTokenHeader = "X-Webhook-Token"

type Client struct {
	baseURL      string
	webhookToken string
	httpClient   *http.Client
}

func NewClient(baseURL, webhookToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      baseURL,
		webhookToken: webhookToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type appointmentResponse struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Amount      *float64 `json:"amount"`
}

// GetAppointment fetches the appointment used to enrich a checkout
// preference. Price falls back to the amount field when price is absent.
func (c *Client) GetAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	u := c.baseURL + "/appointments/" + url.PathEscape(id)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("GetAppointment: build request: %w", err)
	}
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("GetAppointment: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GetAppointment: unexpected status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var apt appointmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&apt); err != nil {
		return nil, fmt.Errorf("GetAppointment: decode: %w", err)
	}

	out := &domain.Appointment{
		Title:       apt.Title,
		Description: apt.Description,
	}
	if apt.Price != nil {
		out.Price = *apt.Price
	} else if apt.Amount != nil {
		out.Price = *apt.Amount
	}
	return out, nil
}

type noticePayload struct {
	AppointmentID string  `json:"appointment_id"`
	Status        string  `json:"status"`
	PaymentID     *string `json:"payment_id"`
	PayerEmail    *string `json:"payer_email"`
}

// NotifyPayment POSTs a normalized payment notice. The downstream backend
// owns durable payment state and must tolerate duplicate notices.
func (c *Client) NotifyPayment(ctx context.Context, notice domain.PaymentNotice) error {
	log := logging.FromContext(ctx)

	payload := noticePayload{
		AppointmentID: notice.AppointmentID,
		Status:        string(notice.Status),
	}
	if notice.PaymentID != "" {
		payload.PaymentID = &notice.PaymentID
	}
	if notice.PayerEmail != "" {
		payload.PayerEmail = &notice.PayerEmail
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("NotifyPayment: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/mercadopago", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("NotifyPayment: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuth(httpReq)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("NotifyPayment: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("backend notified",
		"appointment_id", notice.AppointmentID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("NotifyPayment: unexpected status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.webhookToken != "" {
		req.Header.Set(webhookTokenHeader, c.webhookToken)
	}
}

func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
