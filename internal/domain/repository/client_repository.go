package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// ClientDirectory puerto de solo lectura sobre el directorio de clientes.
type ClientDirectory interface {
	GetByID(ctx context.Context, id string) (*entity.Client, error)
}
