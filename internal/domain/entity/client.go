package entity

import "time"

// Client representa un cliente del directorio (solo lectura para el motor fiscal).
type Client struct {
	ID        string
	CompanyID string
	Name      string
	TaxID     string // NIF
	Address   string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
