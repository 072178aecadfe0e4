package handler

import "net/http"

// AppError is an error surfaced to the caller as `{"msg": ...}`, keeping
// upstream failure detail in logs only.
type AppError struct {
	Status int
	Msg    string
}

func (e *AppError) Error() string { return e.Msg }

var (
	ErrInvalidBody           = &AppError{http.StatusBadRequest, "Cuerpo de solicitud inválido"}
	ErrAppointmentIDRequired = &AppError{http.StatusBadRequest, "appointment_id requerido"}
	ErrCreatePreference      = &AppError{http.StatusInternalServerError, "Error creando preferencia"}
	ErrConfirmPayment        = &AppError{http.StatusInternalServerError, "Error confirmando pago"}
	ErrInternalError         = &AppError{http.StatusInternalServerError, "Error interno"}
)
