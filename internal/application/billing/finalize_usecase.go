package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

// FinalizeUseCase convierte un borrador en documento legal:
//
//	validar → reservar consecutivo + aleatorio (tx 1) → generar IUD y congelar (tx 2) → transmitir
//
// La reserva queda ligada al borrador: si la emisión falla después, reintentar Finalize reanuda
// con el mismo consecutivo y el mismo aleatorio. Nunca se pide un número nuevo para un borrador
// que ya tiene uno.
type FinalizeUseCase struct {
	tx          FinalizeTxRunner
	docs        repository.DocumentRepository
	companies   repository.CompanyRepository
	taxIDs      fiscal.TaxIDValidator
	random      fiscal.RandomSource
	transmitter TransmissionTrigger // nil = sin transmisión
	cfg         Config
	log         *logger.Logger
}

// NewFinalizeUseCase construye el caso de uso.
func NewFinalizeUseCase(
	tx FinalizeTxRunner,
	docs repository.DocumentRepository,
	companies repository.CompanyRepository,
	taxIDs fiscal.TaxIDValidator,
	random fiscal.RandomSource,
	transmitter TransmissionTrigger,
	cfg Config,
	log *logger.Logger,
) *FinalizeUseCase {
	return &FinalizeUseCase{
		tx:          tx,
		docs:        docs,
		companies:   companies,
		taxIDs:      taxIDs,
		random:      random,
		transmitter: transmitter,
		cfg:         cfg,
		log:         log,
	}
}

// Finalize emite el borrador. Un documento ya emitido, pagado o anulado se devuelve sin cambios.
// Si el borrador incumple reglas fiscales devuelve *ValidationFailedError y no consume número.
func (uc *FinalizeUseCase) Finalize(ctx context.Context, companyID, id string) (*dto.DocumentResponse, error) {
	doc, err := loadDocument(ctx, uc.docs, companyID, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsDraft() {
		return toDocumentResponse(doc), nil
	}

	// 1. Validación sin efectos secundarios
	if err := uc.validate(ctx, uc.docs, doc, false); err != nil {
		return nil, err
	}

	// Datos del emisor comprobados antes de asignar número: un IUD imposible no debe quemar consecutivos.
	company, err := uc.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	if err := uc.checkIssuer(company, doc); err != nil {
		return nil, err
	}

	// 2. Reserva: consecutivo y aleatorio quedan persistidos en el borrador
	series := uc.series()
	err = uc.tx.RunFinalize(ctx, func(docs repository.DocumentRepository, seqs repository.SequenceAuthority, _ repository.SettlementRepository) error {
		locked, err := lockDraft(ctx, docs, id)
		if err != nil {
			return err
		}
		doc = locked
		if !locked.IsDraft() || locked.IsReserved() {
			return nil
		}
		// El borrador pudo editarse después de la validación previa: se valida la versión bloqueada.
		if err := uc.validate(ctx, docs, locked, true); err != nil {
			return err
		}
		if err := uc.checkIssuer(company, locked); err != nil {
			return err
		}
		seq, err := seqs.NextSequence(ctx, companyID, series)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSequenceUnavailable, err)
		}
		random, err := uc.random()
		if err != nil {
			return err
		}
		if err := fiscal.Reserve(locked, series, seq, random); err != nil {
			return err
		}
		locked.UpdatedAt = time.Now().UTC()
		return docs.SaveReservation(ctx, locked)
	})
	if err != nil {
		var vErr *ValidationFailedError
		if !errors.As(err, &vErr) {
			uc.log.Error().Err(err).Str("document_id", id).Msg("reserva de consecutivo fallida")
		}
		return nil, err
	}
	if !doc.IsDraft() {
		return toDocumentResponse(doc), nil
	}

	// 3. A partir de aquí el número está ligado al borrador: la emisión no se cancela con la petición.
	ctx = context.WithoutCancel(ctx)

	issued := false
	err = uc.tx.RunFinalize(ctx, func(docs repository.DocumentRepository, _ repository.SequenceAuthority, settlements repository.SettlementRepository) error {
		locked, err := lockDraft(ctx, docs, id)
		if err != nil {
			return err
		}
		doc = locked
		if !locked.IsDraft() {
			return nil
		}
		event, err := fiscal.Issue(locked, company, uc.issueConfig(), time.Now())
		if err != nil {
			return err
		}
		if err := docs.SaveIssued(ctx, locked); err != nil {
			return err
		}
		if err := settlements.Record(ctx, event); err != nil {
			return err
		}
		issued = true
		return nil
	})
	if err != nil {
		uc.log.Error().Err(err).
			Str("document_id", id).
			Int64("sequence", doc.Sequence).
			Msg("emisión fallida; la reserva se conserva para reintentar")
		return nil, err
	}

	if issued {
		uc.log.Info().
			Str("document_id", doc.ID).
			Str("series", doc.Series).
			Int64("sequence", doc.Sequence).
			Str("iud", doc.IUD).
			Str("status", doc.Status).
			Msg("documento emitido")
		// 4. Transmisión fiscal: canal lateral, nunca bloquea ni revierte la emisión
		if uc.transmitter != nil {
			uc.transmitter.ProcessAsync(doc.ID)
		}
	}
	return toDocumentResponse(doc), nil
}

// validate recalcula totales y aplica las reglas fiscales. Una nota de crédito se contrasta
// además con su documento origen; lock lo bloquea para que no se anule mientras se reserva.
func (uc *FinalizeUseCase) validate(ctx context.Context, docs repository.DocumentRepository, doc *entity.Document, lock bool) error {
	fiscal.ApplyTotals(doc, uc.cfg.WithholdingRate)
	issues := fiscal.ValidateDraft(doc, uc.taxIDs)
	if doc.Type == pkgfiscal.TypeCreditNote && doc.ReferenceDocumentID != "" {
		get := docs.GetByID
		if lock {
			get = docs.GetForUpdate
		}
		origin, err := get(ctx, doc.ReferenceDocumentID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		issues = append(issues, fiscal.ValidateCreditNote(doc, origin)...)
	}
	if len(issues) > 0 {
		return &ValidationFailedError{Issues: issues}
	}
	return nil
}

// checkIssuer codifica un IUD de prueba con los datos del emisor.
func (uc *FinalizeUseCase) checkIssuer(company *entity.Company, doc *entity.Document) error {
	_, err := fiscal.EncodeIUD(fiscal.IUDParams{
		CountryCode:    uc.cfg.CountryCode,
		RepositoryCode: company.RepositoryCode,
		Date:           doc.Date,
		IssuerNIF:      company.NIF,
		LEDCode:        company.LEDCode,
		Type:           doc.Type,
		Sequence:       1,
		RandomCode:     "0000000000",
	})
	if err != nil {
		return fmt.Errorf("%w: datos del emisor: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func (uc *FinalizeUseCase) series() string {
	if s := strings.TrimSpace(uc.cfg.DefaultSeries); s != "" {
		return s
	}
	return "A"
}

func (uc *FinalizeUseCase) issueConfig() fiscal.IssueConfig {
	return fiscal.IssueConfig{CountryCode: uc.cfg.CountryCode, WithholdingRate: uc.cfg.WithholdingRate}
}

func lockDraft(ctx context.Context, docs repository.DocumentRepository, id string) (*entity.Document, error) {
	doc, err := docs.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}
