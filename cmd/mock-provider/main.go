// Command mock-provider is an in-memory MercadoPago stand-in for local
// runs: it serves the three provider calls the relay makes and can fire a
// correctly signed webhook back at the relay.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/artattoo/payments-relay/internal/logging"
	"github.com/artattoo/payments-relay/internal/signature"
)

// payment mirrors the provider wire shape; ids are JSON numbers there.
type payment struct {
	ID                int64     `json:"id"`
	Status            string    `json:"status"`
	ExternalReference string    `json:"external_reference"`
	DateCreated       time.Time `json:"date_created"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

type store struct {
	mu       sync.Mutex
	nextID   int64
	payments map[string]payment
}

func (s *store) add(status, externalRef, payerEmail string) payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p := payment{
		ID:                s.nextID,
		Status:            status,
		ExternalReference: externalRef,
		DateCreated:       time.Now().UTC(),
	}
	p.Payer.Email = payerEmail
	s.payments[strconv.FormatInt(p.ID, 10)] = p
	return p
}

func (s *store) get(id string) (payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	return p, ok
}

func (s *store) byExternalRef(ref string) []payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []payment
	for _, p := range s.payments {
		if p.ExternalReference == ref {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	logging.Init("mock-provider", "info", os.Getenv("APP_ENV"))

	addr := getenv("ADDR", ":8081")
	secret := getenv("WEBHOOK_SECRET", "mock-secret")
	relayHook := getenv("RELAY_WEBHOOK_URL", "http://localhost:8001/webhook/mercadopago")

	st := &store{payments: make(map[string]payment)}

	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/checkout/preferences", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ExternalReference string `json:"external_reference"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
			return
		}
		id := uuid.NewString()
		writeJSON(w, http.StatusCreated, map[string]string{
			"id":                 id,
			"init_point":         "http://localhost" + addr + "/pay/" + id,
			"sandbox_init_point": "http://localhost" + addr + "/sandbox/pay/" + id,
		})
	}).Methods(http.MethodPost)

	r.HandleFunc("/v1/payments/search", func(w http.ResponseWriter, r *http.Request) {
		results := st.byExternalRef(r.URL.Query().Get("external_reference"))
		if results == nil {
			results = []payment{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/payments/{id}", func(w http.ResponseWriter, r *http.Request) {
		p, ok := st.get(mux.Vars(r)["id"])
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "payment not found"})
			return
		}
		writeJSON(w, http.StatusOK, p)
	}).Methods(http.MethodGet)

	// Test controls, not part of the provider API: seed a payment, then fire
	// the signed webhook for it at the relay.
	r.HandleFunc("/seed", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status            string `json:"status"`
			ExternalReference string `json:"external_reference"`
			PayerEmail        string `json:"payer_email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
			return
		}
		if body.Status == "" {
			body.Status = "approved"
		}
		p := st.add(body.Status, body.ExternalReference, body.PayerEmail)
		writeJSON(w, http.StatusCreated, p)
	}).Methods(http.MethodPost)

	r.HandleFunc("/fire-webhook/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if _, ok := st.get(id); !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "payment not found"})
			return
		}
		status, err := fireWebhook(relayHook, secret, id)
		if err != nil {
			slog.Error("failed to deliver webhook", "payment_id", id, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"message": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"delivered": true, "relay_status": status})
	}).Methods(http.MethodPost)

	slog.Info("mock provider started", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func fireWebhook(relayHook, secret, paymentID string) (int, error) {
	requestID := uuid.NewString()
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	dataID := signature.NormalizeDataID(paymentID)
	manifest := signature.Manifest(dataID, requestID, ts)
	v1 := signature.Sign([]byte(secret), manifest)

	body, _ := json.Marshal(map[string]any{
		"type": "payment",
		"data": map[string]string{"id": paymentID},
	})

	url := fmt.Sprintf("%s?data.id=%s&type=payment", relayHook, paymentID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("fireWebhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-request-id", requestID)
	req.Header.Set("x-signature", fmt.Sprintf("ts=%s,v1=%s", ts, v1))

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fireWebhook: send: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
