package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// DocumentRepository define el puerto de persistencia para documentos y sus líneas.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	// UpdateDraft reemplaza cabecera y líneas de un borrador (solo si sigue en DRAFT).
	UpdateDraft(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	// GetForUpdate bloquea la fila del documento hasta el fin de la transacción (SELECT … FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.Document, error)
	// SaveReservation persiste serie, consecutivo y componente aleatorio del borrador.
	SaveReservation(ctx context.Context, doc *entity.Document) error
	// SaveIssued persiste los campos fijados en la emisión (IUD, identificador visible, estado).
	SaveIssued(ctx context.Context, doc *entity.Document) error
	// UpdateStatus cambia únicamente el estado legal (PAID, VOID) y el motivo de anulación.
	UpdateStatus(ctx context.Context, doc *entity.Document) error
	// UpdateFiscalStatus cambia únicamente los campos de transmisión fiscal, siempre que el
	// documento conserve prevStatus y prevAttempts; si no, domain.ErrConflict.
	UpdateFiscalStatus(ctx context.Context, doc *entity.Document, prevStatus string, prevAttempts int) error
	// ListByFiscalStatus lista documentos emitidos con el estado de transmisión dado (reintentos).
	ListByFiscalStatus(ctx context.Context, fiscalStatus string, limit int) ([]*entity.Document, error)
	// ListStalePending lista documentos en PENDING sin cambios desde before (transmisión abandonada).
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*entity.Document, error)
}
