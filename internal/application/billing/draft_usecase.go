package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

// DraftUseCase crea, edita y consulta borradores. Nunca toca el consecutivo.
type DraftUseCase struct {
	docs    repository.DocumentRepository
	clients repository.ClientDirectory
	cfg     Config
	log     *logger.Logger
}

// NewDraftUseCase construye el caso de uso.
func NewDraftUseCase(docs repository.DocumentRepository, clients repository.ClientDirectory, cfg Config, log *logger.Logger) *DraftUseCase {
	return &DraftUseCase{docs: docs, clients: clients, cfg: cfg, log: log}
}

// CreateOrUpdateDraft crea un borrador (id vacío) o reemplaza el contenido de uno existente.
// Resuelve el cliente en el directorio y recalcula totales antes de persistir.
func (uc *DraftUseCase) CreateOrUpdateDraft(ctx context.Context, companyID, userID, id string, in dto.DraftRequest) (*dto.DocumentResponse, error) {
	changes, err := uc.buildChanges(ctx, companyID, in)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	if id == "" {
		if changes.Type == "" {
			return nil, fmt.Errorf("%w: el tipo de documento es obligatorio", domain.ErrInvalidInput)
		}
		if changes.Type == pkgfiscal.TypeCreditNote {
			return nil, fmt.Errorf("%w: las notas de crédito se crean desde el documento origen", domain.ErrInvalidInput)
		}
		if changes.Date.IsZero() {
			changes.Date = truncateDay(now)
		}
		doc := &entity.Document{
			ID:        uuid.New().String(),
			CompanyID: companyID,
			Status:    entity.StatusDraft,
			CreatedBy: userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := fiscal.ApplyDraft(doc, changes, uc.cfg.WithholdingRate); err != nil {
			return nil, err
		}
		if err := uc.docs.Create(ctx, doc); err != nil {
			return nil, err
		}
		uc.log.Info().Str("document_id", doc.ID).Str("type", string(doc.Type)).Msg("borrador creado")
		return toDocumentResponse(doc), nil
	}

	doc, err := uc.load(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := fiscal.ApplyDraft(doc, changes, uc.cfg.WithholdingRate); err != nil {
		return nil, err
	}
	doc.UpdatedAt = now
	if err := uc.docs.UpdateDraft(ctx, doc); err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

// GetDocument devuelve un documento de la empresa.
func (uc *DraftUseCase) GetDocument(ctx context.Context, companyID, id string) (*dto.DocumentResponse, error) {
	doc, err := uc.load(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

func (uc *DraftUseCase) load(ctx context.Context, companyID, id string) (*entity.Document, error) {
	return loadDocument(ctx, uc.docs, companyID, id)
}

func (uc *DraftUseCase) buildChanges(ctx context.Context, companyID string, in dto.DraftRequest) (fiscal.DraftChanges, error) {
	ch := fiscal.DraftChanges{
		Type:      pkgfiscal.DocumentType(strings.ToUpper(strings.TrimSpace(in.Type))),
		Notes:     in.Notes,
		Retention: in.Retention,
		Reason:    in.Reason,
	}
	if ch.Type != "" && !pkgfiscal.IsEmittable(ch.Type) {
		return ch, fmt.Errorf("%w: tipo de documento %q", domain.ErrInvalidInput, in.Type)
	}

	var err error
	if ch.Date, err = parseDate(in.Date); err != nil {
		return ch, err
	}
	if in.DueDate != "" {
		due, err := parseDate(in.DueDate)
		if err != nil {
			return ch, err
		}
		ch.DueDate = &due
	}

	if in.ClientID != "" {
		client, err := uc.clients.GetByID(ctx, in.ClientID)
		if err != nil {
			return ch, err
		}
		if client == nil {
			return ch, domain.ErrNotFound
		}
		if client.CompanyID != companyID {
			return ch, domain.ErrForbidden
		}
		ch.Client = &entity.ClientRef{
			ClientID: client.ID,
			TaxID:    client.TaxID,
			Address:  client.Address,
			Name:     client.Name,
		}
	}

	ch.Items = make([]entity.LineItem, 0, len(in.Items))
	for _, it := range in.Items {
		ch.Items = append(ch.Items, entity.LineItem{
			Description: strings.TrimSpace(it.Description),
			Code:        strings.TrimSpace(it.Code),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
		})
	}
	return ch, nil
}

// loadDocument obtiene el documento y comprueba que pertenezca a la empresa.
func loadDocument(ctx context.Context, docs repository.DocumentRepository, companyID, id string) (*entity.Document, error) {
	doc, err := docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return doc, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: fecha %q (usar AAAA-MM-DD)", domain.ErrInvalidInput, s)
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
