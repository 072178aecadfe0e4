package domain

import "time"

// PaymentStatus mirrors the status values MercadoPago reports on a payment.
type PaymentStatus string

const (
	PaymentStatusApproved    PaymentStatus = "approved"
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusInProcess   PaymentStatus = "in_process"
	PaymentStatusRejected    PaymentStatus = "rejected"
	PaymentStatusCancelled   PaymentStatus = "cancelled"
	PaymentStatusRefunded    PaymentStatus = "refunded"
	PaymentStatusChargedBack PaymentStatus = "charged_back"
)

func (s PaymentStatus) IsApproved() bool {
	return s == PaymentStatusApproved
}

// PaymentRecord is a read-only snapshot of a payment owned by the provider.
// The relay never mutates or stores it.
type PaymentRecord struct {
	ID                string
	Status            PaymentStatus
	ExternalReference string
	PayerEmail        string
	DateCreated       time.Time
}

// PaymentNotice is the normalized result forwarded to the appointment
// backend once a payment has been reconciled.
type PaymentNotice struct {
	AppointmentID string
	Status        PaymentStatus
	PaymentID     string
	PayerEmail    string
}

// Appointment is the subset of the appointment backend's record used to
// enrich a checkout preference. All fields are optional.
type Appointment struct {
	Title       string
	Description string
	Price       float64
}

// Preference is the checkout session created at the provider. RedirectURL
// prefers the sandbox entry point when the provider returns one.
type Preference struct {
	ID          string
	RedirectURL string
}

// ConfirmResult is the outcome of an on-demand reconciliation. Status is a
// plain string because "not_found" is produced by the confirmer itself, not
// by the provider.
type ConfirmResult struct {
	Paid      bool
	Status    string
	PaymentID string
}
