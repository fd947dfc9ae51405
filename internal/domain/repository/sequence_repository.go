package repository

import "context"

// SequenceAuthority es la única fuente del próximo consecutivo por serie.
// Dos llamadas nunca observan el mismo valor, aun concurrentes desde varios procesos.
type SequenceAuthority interface {
	NextSequence(ctx context.Context, companyID, series string) (int64, error)
	// Current devuelve el último número asignado (0 si la serie nunca se usó).
	Current(ctx context.Context, companyID, series string) (int64, error)
}
