package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artattoo/payments-relay/internal/domain"
	"github.com/artattoo/payments-relay/internal/testutil"
)

func TestProcessNotification_ApprovedPaymentNotifiesDownstream(t *testing.T) {
	approved := testutil.Payment("777", domain.PaymentStatusApproved, "42", 0)
	provider := &mockProvider{payments: map[string]domain.PaymentRecord{"777": approved}}
	backend := &mockBackend{}
	svc := NewNotificationService(provider, backend)

	svc.ProcessNotification(context.Background(), "777", "payment")

	require.Len(t, backend.notices, 1)
	notice := backend.notices[0]
	assert.Equal(t, "42", notice.AppointmentID)
	assert.Equal(t, domain.PaymentStatusApproved, notice.Status)
	assert.Equal(t, "777", notice.PaymentID)
	assert.Equal(t, "payer@example.com", notice.PayerEmail)
}

func TestProcessNotification_TypeIsCaseInsensitive(t *testing.T) {
	approved := testutil.Payment("777", domain.PaymentStatusApproved, "42", 0)
	provider := &mockProvider{payments: map[string]domain.PaymentRecord{"777": approved}}
	backend := &mockBackend{}
	svc := NewNotificationService(provider, backend)

	svc.ProcessNotification(context.Background(), "777", "Payment")

	assert.Len(t, backend.notices, 1)
}

func TestProcessNotification_NonApprovedIsNotForwarded(t *testing.T) {
	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusPending,
		domain.PaymentStatusRejected,
		domain.PaymentStatusCancelled,
	} {
		payment := testutil.Payment("777", status, "42", 0)
		provider := &mockProvider{payments: map[string]domain.PaymentRecord{"777": payment}}
		backend := &mockBackend{}
		svc := NewNotificationService(provider, backend)

		svc.ProcessNotification(context.Background(), "777", "payment")

		assert.Empty(t, backend.notices, "status %s must not notify", status)
	}
}

func TestProcessNotification_MissingExternalReference(t *testing.T) {
	payment := testutil.Payment("777", domain.PaymentStatusApproved, "", 0)
	provider := &mockProvider{payments: map[string]domain.PaymentRecord{"777": payment}}
	backend := &mockBackend{}
	svc := NewNotificationService(provider, backend)

	svc.ProcessNotification(context.Background(), "777", "payment")

	assert.Empty(t, backend.notices)
}

func TestProcessNotification_FetchFailureIsSwallowed(t *testing.T) {
	provider := &mockProvider{getErr: errors.New("provider down")}
	backend := &mockBackend{}
	svc := NewNotificationService(provider, backend)

	assert.NotPanics(t, func() {
		svc.ProcessNotification(context.Background(), "777", "payment")
	})
	assert.Empty(t, backend.notices)
}

func TestProcessNotification_NotifyFailureIsSwallowed(t *testing.T) {
	approved := testutil.Payment("777", domain.PaymentStatusApproved, "42", 0)
	provider := &mockProvider{payments: map[string]domain.PaymentRecord{"777": approved}}
	backend := &mockBackend{notifyErr: errors.New("backend down")}
	svc := NewNotificationService(provider, backend)

	assert.NotPanics(t, func() {
		svc.ProcessNotification(context.Background(), "777", "payment")
	})
}

func TestProcessNotification_StopDeliveryIsAuditOnly(t *testing.T) {
	provider := &mockProvider{getErr: errors.New("must not be called")}
	backend := &mockBackend{}
	svc := NewNotificationService(provider, backend)

	svc.ProcessNotification(context.Background(), "777", "stop_delivery_op_wh")

	assert.Empty(t, backend.notices)
}

func TestProcessNotification_UnknownTypeIgnored(t *testing.T) {
	provider := &mockProvider{getErr: errors.New("must not be called")}
	backend := &mockBackend{}
	svc := NewNotificationService(provider, backend)

	svc.ProcessNotification(context.Background(), "777", "plan")
	svc.ProcessNotification(context.Background(), "", "payment")

	assert.Empty(t, backend.notices)
}
