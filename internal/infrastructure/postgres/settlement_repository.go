package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
)

var _ repository.SettlementRepository = (*SettlementRepo)(nil)

// SettlementRepo bandeja de salida (outbox) de eventos de liquidación para el libro contable.
// Se escribe en la misma transacción que la emisión.
type SettlementRepo struct {
	q Querier
}

// NewSettlementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSettlementRepository(q Querier) *SettlementRepo {
	return &SettlementRepo{q: q}
}

// Record inserta el evento. Un documento genera como máximo un evento (índice único).
func (r *SettlementRepo) Record(ctx context.Context, event entity.SettlementEvent) error {
	base := event.Base()
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	var due *time.Time
	if p, ok := event.(entity.PendingSettlement); ok {
		due = p.DueDate
	}
	const q = `
		INSERT INTO settlement_events (id, company_id, document_id, iud, kind, amount, due_date, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, q,
		base.ID, base.CompanyID, base.DocumentID, base.IUD, event.Kind(), base.Amount, due, base.OccurredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("settlement event for document %s already recorded: %w", base.DocumentID, err)
		}
		return fmt.Errorf("insert settlement event: %w", err)
	}
	return nil
}

// ListByDocument devuelve los eventos del documento en orden de ocurrencia.
func (r *SettlementRepo) ListByDocument(ctx context.Context, documentID string) ([]entity.SettlementEvent, error) {
	const q = `
		SELECT id, company_id, document_id, iud, kind, amount, due_date, occurred_at
		FROM settlement_events WHERE document_id = $1 ORDER BY occurred_at`
	rows, err := r.q.Query(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("list settlement events: %w", err)
	}
	defer rows.Close()

	var list []entity.SettlementEvent
	for rows.Next() {
		var (
			base entity.SettlementBase
			kind string
			due  *time.Time
		)
		if err := rows.Scan(&base.ID, &base.CompanyID, &base.DocumentID, &base.IUD, &kind, &base.Amount, &due, &base.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan settlement event: %w", err)
		}
		switch kind {
		case entity.SettlementKindAuto:
			list = append(list, entity.AutoSettlement{SettlementBase: base})
		case entity.SettlementKindPending:
			list = append(list, entity.PendingSettlement{SettlementBase: base, DueDate: due})
		default:
			return nil, fmt.Errorf("settlement event %s: tipo desconocido %q", base.ID, kind)
		}
	}
	return list, rows.Err()
}
