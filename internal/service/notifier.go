package service

import (
	"context"
	"strings"

	"github.com/artattoo/payments-relay/internal/domain"
	"github.com/artattoo/payments-relay/internal/logging"
)

// Notification types the provider delivers to the webhook endpoint.
const (
	notifTypePayment      = "payment"
	notifTypeStopDelivery = "stop_delivery_op_wh"
)

// NotificationService handles verified webhook events: it fetches the
// authoritative payment state from the provider and forwards approved
// payments to the appointment backend.
type NotificationService struct {
	provider paymentProvider
	backend  appointmentBackend
}

func NewNotificationService(provider paymentProvider, backend appointmentBackend) *NotificationService {
	return &NotificationService{provider: provider, backend: backend}
}

// ProcessNotification processes a verified {id, type} event. All upstream
// failures are logged and swallowed: the provider's own delivery retries
// cover transient fetch failures, and a downstream notify failure must not
// turn into a non-2xx webhook reply that would trigger retransmission.
func (s *NotificationService) ProcessNotification(ctx context.Context, dataID, notifType string) {
	log := logging.FromContext(ctx)

	switch strings.ToLower(notifType) {
	case notifTypePayment:
		if dataID == "" {
			return
		}
		s.processPayment(ctx, dataID)
	case notifTypeStopDelivery:
		// Fraud / delivery-stop signal. Audit only, never forwarded.
		log.Warn("stop delivery notification received", "data_id", dataID)
	default:
		log.Debug("ignoring notification type", "type", notifType, "data_id", dataID)
	}
}

func (s *NotificationService) processPayment(ctx context.Context, dataID string) {
	log := logging.FromContext(ctx)

	payment, err := s.provider.GetPayment(ctx, dataID)
	if err != nil {
		log.Error("failed to fetch payment from provider",
			"payment_id", dataID,
			"error", err,
		)
		return
	}

	log.Info("payment fetched",
		"payment_id", payment.ID,
		"payment_status", payment.Status,
		"external_reference", payment.ExternalReference,
	)

	if payment.ExternalReference == "" {
		log.Warn("payment has no external reference, cannot reconcile", "payment_id", payment.ID)
		return
	}

	if !payment.Status.IsApproved() {
		log.Info("payment not approved, no downstream notice",
			"payment_id", payment.ID,
			"payment_status", payment.Status,
		)
		return
	}

	notice := domain.PaymentNotice{
		AppointmentID: payment.ExternalReference,
		Status:        payment.Status,
		PaymentID:     payment.ID,
		PayerEmail:    payment.PayerEmail,
	}
	if err := s.backend.NotifyPayment(ctx, notice); err != nil {
		log.Error("failed to notify backend",
			"appointment_id", payment.ExternalReference,
			"payment_id", payment.ID,
			"error", err,
		)
		return
	}

	log.Info("backend notified of approved payment",
		"appointment_id", payment.ExternalReference,
		"payment_id", payment.ID,
	)
}
