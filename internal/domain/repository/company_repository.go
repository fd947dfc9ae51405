package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// CompanyRepository puerto de lectura de datos del emisor (NIF, LED, repositorio).
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
}
