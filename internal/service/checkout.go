package service

import (
	"context"
	"fmt"

	"github.com/artattoo/payments-relay/internal/domain"
	"github.com/artattoo/payments-relay/internal/logging"
	"github.com/artattoo/payments-relay/internal/mercadopago"
)

const (
	// deepLinkBase is the mobile app scheme the checkout redirects back to.
	deepLinkBase = "artattoo://pay-result"

	currencyID       = "CLP"
	defaultUnitPrice = 1000
)

// CheckoutService builds checkout preferences for appointments.
type CheckoutService struct {
	provider   paymentProvider
	backend    appointmentBackend
	publicBase string
}

func NewCheckoutService(provider paymentProvider, backend appointmentBackend, publicBase string) *CheckoutService {
	return &CheckoutService{provider: provider, backend: backend, publicBase: publicBase}
}

// CreateCheckout creates a checkout session for the appointment and returns
// its id and redirect URL. Appointment enrichment is best effort: when the
// backend lookup fails, the preference is built from defaults.
func (s *CheckoutService) CreateCheckout(ctx context.Context, appointmentID string) (*domain.Preference, error) {
	log := logging.FromContext(ctx)

	title := fmt.Sprintf("Reserva #%s", appointmentID)
	description := fmt.Sprintf("Pago de reserva #%s", appointmentID)
	unitPrice := float64(defaultUnitPrice)

	apt, err := s.backend.GetAppointment(ctx, appointmentID)
	if err != nil {
		log.Warn("appointment enrichment failed, using defaults",
			"appointment_id", appointmentID,
			"error", err,
		)
	} else {
		if apt.Title != "" {
			title = apt.Title
		}
		if apt.Description != "" {
			description = apt.Description
		}
		if apt.Price > 0 {
			unitPrice = apt.Price
		}
	}

	req := mercadopago.PreferenceRequest{
		Items: []mercadopago.PreferenceItem{
			{
				ID:          appointmentID,
				Title:       title,
				Description: description,
				Quantity:    1,
				CurrencyID:  currencyID,
				UnitPrice:   unitPrice,
			},
		},
		ExternalReference: appointmentID,
		BackURLs: mercadopago.BackURLs{
			Success: fmt.Sprintf("%s?status=approved&apt=%s", deepLinkBase, appointmentID),
			Failure: fmt.Sprintf("%s?status=failure&apt=%s", deepLinkBase, appointmentID),
			Pending: fmt.Sprintf("%s?status=pending&apt=%s", deepLinkBase, appointmentID),
		},
		AutoReturn:      "approved",
		NotificationURL: s.publicBase + "/webhook/mercadopago?source_news=webhooks",
	}

	pref, err := s.provider.CreatePreference(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreateCheckout: %w", err)
	}

	log.Info("checkout preference created",
		"appointment_id", appointmentID,
		"preference_id", pref.ID,
	)
	return pref, nil
}
