package service

import (
	"context"

	"github.com/artattoo/payments-relay/internal/domain"
	"github.com/artattoo/payments-relay/internal/mercadopago"
)

type paymentProvider interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*domain.Preference, error)
	GetPayment(ctx context.Context, id string) (*domain.PaymentRecord, error)
	SearchByExternalReference(ctx context.Context, ref string) ([]domain.PaymentRecord, error)
}

type appointmentBackend interface {
	GetAppointment(ctx context.Context, id string) (*domain.Appointment, error)
	NotifyPayment(ctx context.Context, notice domain.PaymentNotice) error
}
