// Package mercadopago is a thin client over the MercadoPago REST API,
// covering the three calls the relay needs: create a checkout preference,
// get a payment by id, and search payments by external reference.
package mercadopago

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

// integratorID is sent on preference creation, matching the credential the
// provider issued for this integration.
const integratorID = "dev_24c65fb163bf11ea96500242ac130004"

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PreferenceItem is a single line item on a checkout preference.
type PreferenceItem struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	CurrencyID  string  `json:"currency_id"`
	UnitPrice   float64 `json:"unit_price"`
}

// BackURLs are the deep links the checkout redirects to per outcome.
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest is the body for the create-preference call.
type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return"`
	NotificationURL   string           `json:"notification_url"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type paymentPayer struct {
	Email string `json:"email"`
}

type paymentResponse struct {
	ID                json.Number  `json:"id"`
	Status            string       `json:"status"`
	ExternalReference string       `json:"external_reference"`
	Payer             paymentPayer `json:"payer"`
	DateCreated       time.Time    `json:"date_created"`
}

func (p paymentResponse) toDomain() domain.PaymentRecord {
	return domain.PaymentRecord{
		ID:                p.ID.String(),
		Status:            domain.PaymentStatus(p.Status),
		ExternalReference: p.ExternalReference,
		PayerEmail:        p.Payer.Email,
		DateCreated:       p.DateCreated,
	}
}

type searchResponse struct {
	Results []paymentResponse `json:"results"`
}

// CreatePreference creates a checkout session and returns its id and the
// redirect URL, preferring the sandbox entry point when the provider
// returns one.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*domain.Preference, error) {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("CreatePreference: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("CreatePreference: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("X-Integrator-Id", integratorID)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("CreatePreference: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("provider preference response",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("CreatePreference: unexpected status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var pref preferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pref); err != nil {
		return nil, fmt.Errorf("CreatePreference: decode: %w", err)
	}

	redirect := pref.SandboxInitPoint
	if redirect == "" {
		redirect = pref.InitPoint
	}
	return &domain.Preference{ID: pref.ID, RedirectURL: redirect}, nil
}

// GetPayment fetches the authoritative payment object by id.
func (c *Client) GetPayment(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	log := logging.FromContext(ctx)

	u := c.baseURL + "/v1/payments/" + url.PathEscape(id)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("GetPayment: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("GetPayment: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("provider payment response",
		"payment_id", id,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("GetPayment: %w", domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GetPayment: unexpected status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var payment paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("GetPayment: decode: %w", err)
	}

	record := payment.toDomain()
	return &record, nil
}

// SearchByExternalReference lists payments whose external reference equals
// ref, requesting descending creation-time order from the provider. Callers
// that depend on the order re-sort defensively.
func (c *Client) SearchByExternalReference(ctx context.Context, ref string) ([]domain.PaymentRecord, error) {
	log := logging.FromContext(ctx)

	q := url.Values{}
	q.Set("external_reference", ref)
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")

	u := c.baseURL + "/v1/payments/search?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("SearchByExternalReference: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("SearchByExternalReference: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("provider search response",
		"external_reference", ref,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SearchByExternalReference: unexpected status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var search searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, fmt.Errorf("SearchByExternalReference: decode: %w", err)
	}

	records := make([]domain.PaymentRecord, 0, len(search.Results))
	for _, r := range search.Results {
		records = append(records, r.toDomain())
	}
	return records, nil
}

func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
