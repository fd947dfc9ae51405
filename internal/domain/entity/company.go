package entity

import "time"

// Company representa al emisor (tenant) de los documentos fiscales.
type Company struct {
	ID             string
	Name           string
	NIF            string // NIF del emisor (9 dígitos)
	Address        string
	Email          string
	LEDCode        string // código de local/dispositivo asignado por la autoridad (5 dígitos)
	RepositoryCode string // código de repositorio (1 dígito)
	Status         string // active, suspended, inactive
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
