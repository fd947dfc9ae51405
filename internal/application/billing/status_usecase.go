package billing

import (
	"context"
	"time"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

// StatusUseCase transiciones posteriores a la emisión: pago y anulación.
type StatusUseCase struct {
	docs repository.DocumentRepository
	log  *logger.Logger
}

// NewStatusUseCase construye el caso de uso.
func NewStatusUseCase(docs repository.DocumentRepository, log *logger.Logger) *StatusUseCase {
	return &StatusUseCase{docs: docs, log: log}
}

// RegisterPayment ISSUED -> PAID (evento de pago externo sobre una factura).
func (uc *StatusUseCase) RegisterPayment(ctx context.Context, companyID, id string) (*dto.DocumentResponse, error) {
	doc, err := loadDocument(ctx, uc.docs, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := fiscal.RegisterPayment(doc, time.Now()); err != nil {
		return nil, err
	}
	if err := uc.docs.UpdateStatus(ctx, doc); err != nil {
		return nil, err
	}
	uc.log.Info().Str("document_id", doc.ID).Str("iud", doc.IUD).Msg("pago registrado")
	return toDocumentResponse(doc), nil
}

// Void ISSUED -> VOID. El número e IUD siguen ocupados; nada se reutiliza.
func (uc *StatusUseCase) Void(ctx context.Context, companyID, id, reason string) (*dto.DocumentResponse, error) {
	doc, err := loadDocument(ctx, uc.docs, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := fiscal.Void(doc, reason, time.Now()); err != nil {
		return nil, err
	}
	if err := uc.docs.UpdateStatus(ctx, doc); err != nil {
		return nil, err
	}
	uc.log.Warn().Str("document_id", doc.ID).Str("iud", doc.IUD).Str("reason", doc.VoidReason).Msg("documento anulado")
	return toDocumentResponse(doc), nil
}
