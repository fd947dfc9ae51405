package billing

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	infrafiscal "github.com/jhoicas/Facturacion-api/internal/infrastructure/fiscal"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

const defaultTransmissionTimeout = 30 * time.Second

// TransmissionOrchestrator transmite los documentos emitidos a la plataforma fiscal:
//
//	XML DFE → huella C14N → firma (opcional) → ZIP → envío SOAP → estado fiscal
//
// Corre siempre fuera del ciclo de la emisión (ProcessAsync) con su propio contexto y timeout.
// Un fallo deja FiscalStatus=FAILED con el error y el número de intentos; nunca toca el estado legal.
//
// Cada intento reclama el documento pasándolo a PENDING con una escritura condicionada al estado
// e intentos leídos: de dos procesos concurrentes solo uno transmite. Un PENDING sin movimiento
// durante más de dos timeouts se considera abandonado (proceso caído) y vuelve a reclamarse.
type TransmissionOrchestrator struct {
	docs       repository.DocumentRepository
	companies  repository.CompanyRepository
	xmlBuilder *infrafiscal.XMLBuilderService
	signer     pkgfiscal.Signer // nil = DFE sin firma
	cert       tls.Certificate
	submitter  infrafiscal.Submitter // nil en dev
	cfg        TransmissionConfig
	log        *logger.Logger
}

// NewTransmissionOrchestrator construye el orquestador. Con cert vacío el DFE viaja sin firma.
func NewTransmissionOrchestrator(
	docs repository.DocumentRepository,
	companies repository.CompanyRepository,
	xmlBuilder *infrafiscal.XMLBuilderService,
	signer pkgfiscal.Signer,
	cert tls.Certificate,
	submitter infrafiscal.Submitter,
	cfg TransmissionConfig,
	log *logger.Logger,
) *TransmissionOrchestrator {
	return &TransmissionOrchestrator{
		docs:       docs,
		companies:  companies,
		xmlBuilder: xmlBuilder,
		signer:     signer,
		cert:       cert,
		submitter:  submitter,
		cfg:        cfg,
		log:        log,
	}
}

var _ TransmissionTrigger = (*TransmissionOrchestrator)(nil)

// ProcessAsync dispara la transmisión en una goroutine independiente.
func (o *TransmissionOrchestrator) ProcessAsync(documentID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout())
		defer cancel()
		if err := o.Process(ctx, documentID); err != nil && !errors.Is(err, errTransmissionClaimed) {
			o.log.Error().Err(err).Str("document_id", documentID).Msg("transmisión fiscal")
		}
	}()
}

// Retry reencola un documento FAILED, NOT_SENT o PENDING abandonado de la empresa. La transmisión corre en segundo plano.
func (o *TransmissionOrchestrator) Retry(ctx context.Context, companyID, id string) (*dto.TransmissionStatusDTO, error) {
	doc, err := loadDocument(ctx, o.docs, companyID, id)
	if err != nil {
		return nil, err
	}
	if !o.transmittable(doc, time.Now().UTC()) {
		return nil, fmt.Errorf("%w: transmisión en estado %s/%s", domain.ErrInvalidTransition, doc.Status, doc.FiscalStatus)
	}
	o.ProcessAsync(doc.ID)
	return toTransmissionStatus(doc), nil
}

// RetryFailed procesa en serie hasta limit documentos pendientes de transmitir. Devuelve cuántos
// quedaron TRANSMITTED.
func (o *TransmissionOrchestrator) RetryFailed(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	var pending []*entity.Document
	for _, status := range []string{entity.FiscalStatusFailed, entity.FiscalStatusNotSent} {
		docs, err := o.docs.ListByFiscalStatus(ctx, status, limit-len(pending))
		if err != nil {
			return 0, err
		}
		pending = append(pending, docs...)
		if len(pending) >= limit {
			break
		}
	}
	if len(pending) < limit {
		stale, err := o.docs.ListStalePending(ctx, time.Now().UTC().Add(-o.staleAfter()), limit-len(pending))
		if err != nil {
			return 0, err
		}
		pending = append(pending, stale...)
	}

	transmitted := 0
	for _, doc := range pending {
		if ctx.Err() != nil {
			return transmitted, ctx.Err()
		}
		err := o.Process(ctx, doc.ID)
		switch {
		case err == nil:
			transmitted++
		case errors.Is(err, errRejected), errors.Is(err, errTransmissionClaimed):
		default:
			o.log.Warn().Err(err).Str("document_id", doc.ID).Msg("reintento de transmisión fallido")
		}
	}
	return transmitted, nil
}

var (
	errRejected            = errors.New("documento rechazado por la plataforma fiscal")
	errTransmissionClaimed = fmt.Errorf("%w: otro proceso está transmitiendo el documento", domain.ErrConflict)
)

// Process transmite un documento de forma síncrona. Devuelve nil solo si quedó TRANSMITTED.
func (o *TransmissionOrchestrator) Process(ctx context.Context, documentID string) error {
	doc, err := o.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return domain.ErrNotFound
	}
	if !o.transmittable(doc, time.Now().UTC()) {
		o.log.Debug().Str("document_id", doc.ID).Str("fiscal_status", doc.FiscalStatus).Msg("transmisión omitida")
		return nil
	}

	// Reclamo: solo gana quien ve todavía el estado y los intentos leídos.
	prevStatus, prevAttempts := doc.FiscalStatus, doc.FiscalAttempts
	if err := fiscal.SetFiscalStatus(doc, entity.FiscalStatusPending, ""); err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := o.docs.UpdateFiscalStatus(ctx, doc, prevStatus, prevAttempts); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			o.log.Debug().Str("document_id", doc.ID).Msg("transmisión reclamada por otro proceso")
			return errTransmissionClaimed
		}
		return err
	}
	claimed := doc.FiscalAttempts

	// save persiste el resultado solo si el reclamo sigue siendo nuestro.
	save := func() error {
		doc.UpdatedAt = time.Now().UTC()
		err := o.docs.UpdateFiscalStatus(context.WithoutCancel(ctx), doc, entity.FiscalStatusPending, claimed)
		if errors.Is(err, domain.ErrConflict) {
			return errTransmissionClaimed
		}
		return err
	}

	// markFailed deja el documento en FAILED con el paso y el motivo.
	markFailed := func(step string, cause error) error {
		msg := step + ": " + cause.Error()
		if err := fiscal.SetFiscalStatus(doc, entity.FiscalStatusFailed, msg); err != nil {
			return err
		}
		if err := save(); err != nil {
			o.log.Error().Err(err).Str("document_id", doc.ID).Msg("no se pudo persistir FAILED")
		}
		o.log.Warn().
			Str("document_id", doc.ID).
			Str("iud", doc.IUD).
			Int("attempt", doc.FiscalAttempts).
			Str("step", step).
			Msg(cause.Error())
		return fmt.Errorf("%s: %w", step, cause)
	}

	company, err := o.companies.GetByID(ctx, doc.CompanyID)
	if err != nil {
		return markFailed("fetch-company", err)
	}
	if company == nil {
		return markFailed("fetch-company", domain.ErrNotFound)
	}

	payload, err := o.xmlBuilder.Build(doc, company)
	if err != nil {
		return markFailed("xml-build", err)
	}
	digest, err := infrafiscal.Digest(payload)
	if err != nil {
		return markFailed("digest", err)
	}
	doc.FiscalDigest = digest

	if o.signer != nil && len(o.cert.Certificate) > 0 {
		if payload, err = o.signer.Sign(payload, o.cert); err != nil {
			return markFailed("xml-sign", err)
		}
	}

	xmlName, zipName := infrafiscal.DFEFilenames(company, doc)
	zipBytes, err := infrafiscal.CompressXMLToZip(payload, xmlName)
	if err != nil {
		return markFailed("zip", err)
	}

	var trackID string
	env := strings.ToLower(strings.TrimSpace(o.cfg.Env))
	switch env {
	case infrafiscal.AppEnvDev, "":
		o.log.Info().
			Str("document_id", doc.ID).
			Str("zip", zipName).
			Int("bytes", len(zipBytes)).
			Msg("[DEV] transmisión simulada")
		trackID = "MOCK-" + doc.IUD

	case infrafiscal.AppEnvTest, infrafiscal.AppEnvProd:
		if o.submitter == nil {
			return markFailed("submit", fmt.Errorf("submitter no inyectado para entorno %s", env))
		}
		result, err := o.submitter.SubmitZip(ctx, zipBytes, zipName, env)
		if err != nil {
			return markFailed("submit", err)
		}
		if !result.Accepted {
			return markFailed("submit", fmt.Errorf("%w: %s", errRejected, result.Errors))
		}
		trackID = result.TrackID

	default:
		return markFailed("config", fmt.Errorf("FISCAL_ENV desconocido: %q (usar dev|test|prod)", env))
	}

	if err := fiscal.SetFiscalStatus(doc, entity.FiscalStatusTransmitted, ""); err != nil {
		return err
	}
	if err := save(); err != nil {
		return err
	}
	o.log.Info().
		Str("document_id", doc.ID).
		Str("iud", doc.IUD).
		Str("track_id", trackID).
		Str("digest", digest).
		Msg("documento transmitido")
	return nil
}

func (o *TransmissionOrchestrator) timeout() time.Duration {
	if o.cfg.Timeout > 0 {
		return o.cfg.Timeout
	}
	return defaultTransmissionTimeout
}

// staleAfter antigüedad a partir de la cual un PENDING se da por abandonado.
func (o *TransmissionOrchestrator) staleAfter() time.Duration {
	return 2 * o.timeout()
}

func (o *TransmissionOrchestrator) transmittable(doc *entity.Document, now time.Time) bool {
	if doc.IsDraft() {
		return false
	}
	switch doc.FiscalStatus {
	case entity.FiscalStatusNotSent, entity.FiscalStatusFailed, "":
		return true
	case entity.FiscalStatusPending:
		return doc.UpdatedAt.Before(now.Add(-o.staleAfter()))
	}
	return false
}
