package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
)

var _ repository.SequenceAuthority = (*SequenceRepo)(nil)

// SequenceRepo consecutivos por (empresa, serie) sobre la tabla series_counters.
type SequenceRepo struct {
	q Querier
}

// NewSequenceRepository construye el adaptador. Pasar pool o tx (Querier); para que el número
// se revierta junto con la reserva debe usarse la tx de la finalización.
func NewSequenceRepository(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

// NextSequence incrementa y devuelve el contador en una sola sentencia. El UPSERT toma el
// bloqueo de fila de la serie hasta el fin de la transacción: dos llamadas concurrentes
// se serializan y nunca observan el mismo valor.
func (r *SequenceRepo) NextSequence(ctx context.Context, companyID, series string) (int64, error) {
	const q = `
		INSERT INTO series_counters (company_id, series, last_number, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (company_id, series)
		DO UPDATE SET last_number = series_counters.last_number + 1,
		              updated_at  = now()
		RETURNING last_number`
	var n int64
	if err := r.q.QueryRow(ctx, q, companyID, series).Scan(&n); err != nil {
		return 0, fmt.Errorf("next sequence %s/%s: %w", companyID, series, err)
	}
	return n, nil
}

// Current devuelve el último número asignado (0 si la serie nunca se usó).
func (r *SequenceRepo) Current(ctx context.Context, companyID, series string) (int64, error) {
	const q = `SELECT last_number FROM series_counters WHERE company_id = $1 AND series = $2`
	var n int64
	err := r.q.QueryRow(ctx, q, companyID, series).Scan(&n)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("current sequence %s/%s: %w", companyID, series, err)
	}
	return n, nil
}
