package billing

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
)

// FinalizeTxRunner ejecuta una función dentro de una transacción con repositorios ligados a ella.
// Si fn retorna error se hace rollback: ni el consecutivo ni el documento cambian.
type FinalizeTxRunner interface {
	RunFinalize(ctx context.Context, fn func(
		docs repository.DocumentRepository,
		seqs repository.SequenceAuthority,
		settlements repository.SettlementRepository,
	) error) error
}

// TransmissionTrigger dispara la transmisión fiscal sin bloquear al llamador.
type TransmissionTrigger interface {
	ProcessAsync(documentID string)
}
