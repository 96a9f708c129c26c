package domain

import "time"

// Reason codes recorded on rejected access attempts.
const (
	ReasonTokenInvalid   = "token_invalido"
	ReasonSessionExpired = "sesion_expirada"
	ReasonDeviceMismatch = "dispositivo_no_autorizado"
	ReasonIPMismatch     = "ip_diferente"
)

// Attempt is an immutable audit record of a rejected access attempt.
// Created only; never mutated or deleted.
type Attempt struct {
	ID        string
	IPAddress string
	UserAgent string
	URL       string
	Reason    string
	CreatedAt time.Time
}
