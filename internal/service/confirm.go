package service

import (
	"context"
	"sort"

	"github.com/artattoo/payments-relay/internal/domain"
	"github.com/artattoo/payments-relay/internal/logging"
)

// ConfirmService reconciles an appointment's paid status directly against
// the provider, independently of the webhook path.
type ConfirmService struct {
	provider paymentProvider
	backend  appointmentBackend
}

func NewConfirmService(provider paymentProvider, backend appointmentBackend) *ConfirmService {
	return &ConfirmService{provider: provider, backend: backend}
}

// ConfirmPayment determines whether the appointment has an approved payment.
// An explicit paymentID is checked first; otherwise (or when that payment is
// not approved) the provider is searched by external reference. An approved
// payment anywhere in the result set wins, even when a more recent
// non-approved one exists. Provider failures degrade to an empty result set
// rather than propagating.
func (s *ConfirmService) ConfirmPayment(ctx context.Context, appointmentID, paymentID string) domain.ConfirmResult {
	log := logging.FromContext(ctx)

	if paymentID != "" {
		payment, err := s.provider.GetPayment(ctx, paymentID)
		if err != nil {
			log.Warn("payment lookup failed, falling back to search",
				"payment_id", paymentID,
				"error", err,
			)
		} else if payment.Status.IsApproved() {
			s.notifyApproved(ctx, appointmentID, *payment)
			return domain.ConfirmResult{
				Paid:      true,
				Status:    string(domain.PaymentStatusApproved),
				PaymentID: payment.ID,
			}
		}
	}

	found, err := s.provider.SearchByExternalReference(ctx, appointmentID)
	if err != nil {
		log.Warn("payment search failed, treating as empty",
			"appointment_id", appointmentID,
			"error", err,
		)
		found = nil
	}

	// The provider is asked for descending creation order, but the result is
	// re-sorted so the "most recent" pick holds regardless of what came back.
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].DateCreated.After(found[j].DateCreated)
	})

	for _, payment := range found {
		if payment.Status.IsApproved() {
			s.notifyApproved(ctx, appointmentID, payment)
			return domain.ConfirmResult{
				Paid:      true,
				Status:    string(domain.PaymentStatusApproved),
				PaymentID: payment.ID,
			}
		}
	}

	if len(found) > 0 {
		status := string(found[0].Status)
		if status == "" {
			status = string(domain.PaymentStatusPending)
		}
		return domain.ConfirmResult{Paid: false, Status: status}
	}

	return domain.ConfirmResult{Paid: false, Status: "not_found"}
}

// notifyApproved forwards the approved payment downstream. Failures are
// logged and swallowed: the downstream backend owns durable state and the
// caller still learns the payment is approved.
func (s *ConfirmService) notifyApproved(ctx context.Context, appointmentID string, payment domain.PaymentRecord) {
	log := logging.FromContext(ctx)

	notice := domain.PaymentNotice{
		AppointmentID: appointmentID,
		Status:        domain.PaymentStatusApproved,
		PaymentID:     payment.ID,
		PayerEmail:    payment.PayerEmail,
	}
	if err := s.backend.NotifyPayment(ctx, notice); err != nil {
		log.Error("failed to notify backend of approved payment",
			"appointment_id", appointmentID,
			"payment_id", payment.ID,
			"error", err,
		)
	}
}
