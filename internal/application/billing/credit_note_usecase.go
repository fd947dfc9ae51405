package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

// CreditNoteUseCase crea borradores de nota de crédito contra documentos emitidos.
// La nota se emite luego con FinalizeUseCase como cualquier otro borrador.
type CreditNoteUseCase struct {
	docs repository.DocumentRepository
	cfg  Config
	log  *logger.Logger
}

// NewCreditNoteUseCase construye el caso de uso.
func NewCreditNoteUseCase(docs repository.DocumentRepository, cfg Config, log *logger.Logger) *CreditNoteUseCase {
	return &CreditNoteUseCase{docs: docs, cfg: cfg, log: log}
}

// CreateCreditNote copia cliente y líneas elegidas del documento origen con cantidades negativas.
func (uc *CreditNoteUseCase) CreateCreditNote(ctx context.Context, companyID, userID, targetID string, in dto.CreditNoteRequest) (*dto.DocumentResponse, error) {
	target, err := loadDocument(ctx, uc.docs, companyID, targetID)
	if err != nil {
		return nil, err
	}
	note, err := fiscal.NewCreditNote(target, in.Lines)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	note.ID = uuid.New().String()
	note.Date = truncateDay(now)
	note.Reason = strings.TrimSpace(in.Reason)
	note.CreatedBy = userID
	note.CreatedAt = now
	note.UpdatedAt = now
	fiscal.ApplyTotals(note, uc.cfg.WithholdingRate)

	if err := uc.docs.Create(ctx, note); err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("document_id", note.ID).
		Str("reference_document_id", target.ID).
		Str("total", note.Total.String()).
		Msg("nota de crédito creada")
	return toDocumentResponse(note), nil
}
