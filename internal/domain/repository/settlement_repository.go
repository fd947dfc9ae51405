package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// SettlementRepository registra los eventos de liquidación que consume el libro contable.
type SettlementRepository interface {
	Record(ctx context.Context, event entity.SettlementEvent) error
	ListByDocument(ctx context.Context, documentID string) ([]entity.SettlementEvent, error)
}
