package fiscal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
)

// DraftChanges contenido editable de un borrador. Reemplaza cabecera y líneas completas;
// Client nil conserva el cliente actual (un borrador no puede quedarse sin cliente una vez
// asignado; se cambia por otro).
type DraftChanges struct {
	Type      pkgfiscal.DocumentType
	Date      time.Time
	DueDate   *time.Time
	Client    *entity.ClientRef
	Items     []entity.LineItem
	Notes     string
	Retention bool
	Reason    string
}

// IssueConfig parámetros del régimen aplicados en la emisión.
type IssueConfig struct {
	CountryCode     string
	WithholdingRate decimal.Decimal
}

// ApplyDraft aplica cambios a un borrador y recalcula totales.
// Un documento emitido devuelve ErrImmutableDocument; un borrador con consecutivo
// reservado devuelve ErrFinalizeInProgress.
func ApplyDraft(doc *entity.Document, ch DraftChanges, withholdingRate decimal.Decimal) error {
	if err := ensureEditable(doc); err != nil {
		return err
	}
	if doc.Type == pkgfiscal.TypeCreditNote {
		return applyCreditNoteDraft(doc, ch, withholdingRate)
	}
	if ch.Type == pkgfiscal.TypeCreditNote {
		return fmt.Errorf("%w: las notas de crédito se crean desde el documento origen", domain.ErrInvalidInput)
	}
	if ch.Type != "" {
		doc.Type = ch.Type
	}
	if !ch.Date.IsZero() {
		doc.Date = ch.Date
	}
	doc.DueDate = ch.DueDate
	if ch.Client != nil {
		doc.Client = *ch.Client
	}
	doc.Items = append([]entity.LineItem(nil), ch.Items...)
	doc.Notes = strings.TrimSpace(ch.Notes)
	doc.Retention = ch.Retention
	doc.Reason = strings.TrimSpace(ch.Reason)
	ApplyTotals(doc, withholdingRate)
	return nil
}

// applyCreditNoteDraft en una nota de crédito solo cambian fecha, notas y motivo. Cliente y
// líneas son los del documento origen: se aceptan repetidos tal cual, nunca distintos.
func applyCreditNoteDraft(doc *entity.Document, ch DraftChanges, withholdingRate decimal.Decimal) error {
	if ch.Type != "" && ch.Type != pkgfiscal.TypeCreditNote {
		return fmt.Errorf("%w: una nota de crédito no puede cambiar de tipo", domain.ErrInvalidInput)
	}
	if ch.Client != nil && ch.Client.ClientID != doc.Client.ClientID {
		return fmt.Errorf("%w: el cliente de una nota de crédito es el del documento origen", domain.ErrInvalidInput)
	}
	if len(ch.Items) > 0 && !sameLines(doc.Items, ch.Items) {
		return fmt.Errorf("%w: las líneas de una nota de crédito provienen del documento origen", domain.ErrInvalidInput)
	}
	if !ch.Date.IsZero() {
		doc.Date = ch.Date
	}
	doc.Notes = strings.TrimSpace(ch.Notes)
	doc.Reason = strings.TrimSpace(ch.Reason)
	ApplyTotals(doc, withholdingRate)
	return nil
}

func sameLines(a, b []entity.LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameLine(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameLine compara el contenido de la línea; el total es derivado y no cuenta.
func sameLine(a, b entity.LineItem) bool {
	return a.Description == b.Description &&
		a.Code == b.Code &&
		a.Quantity.Equal(b.Quantity) &&
		a.UnitPrice.Equal(b.UnitPrice) &&
		a.TaxRate.Equal(b.TaxRate)
}

// Reserve fija serie, consecutivo y componente aleatorio en el borrador.
// Se llama una sola vez por documento; la reserva sobrevive a fallos posteriores.
func Reserve(doc *entity.Document, series string, seq int64, random string) error {
	if !doc.IsDraft() {
		return domain.ErrImmutableDocument
	}
	if doc.IsReserved() {
		return domain.ErrFinalizeInProgress
	}
	if strings.TrimSpace(series) == "" || seq <= 0 {
		return fmt.Errorf("%w: serie %q consecutivo %d", domain.ErrInvalidInput, series, seq)
	}
	if len(random) != pkgfiscal.RandomCodeLength || !isDigits(random) {
		return fmt.Errorf("%w: componente aleatorio %q", domain.ErrInvalidInput, random)
	}
	doc.Series = series
	doc.Sequence = seq
	doc.RandomCode = random
	return nil
}

// Issue congela un borrador reservado: genera IUD e identificador visible, fija la fecha de
// emisión y el estado final. Los tipos de liquidación inmediata terminan en PAID.
// Devuelve el evento de liquidación que debe registrarse en la misma transacción.
func Issue(doc *entity.Document, company *entity.Company, cfg IssueConfig, now time.Time) (entity.SettlementEvent, error) {
	if !doc.IsDraft() {
		return nil, fmt.Errorf("%w: el documento está en %s", domain.ErrInvalidTransition, doc.Status)
	}
	if !doc.IsReserved() {
		return nil, fmt.Errorf("%w: el borrador no tiene consecutivo reservado", domain.ErrInvalidTransition)
	}
	if company == nil {
		return nil, fmt.Errorf("%w: emisor no informado", domain.ErrInvalidInput)
	}

	iud, err := EncodeIUD(IUDParams{
		CountryCode:    cfg.CountryCode,
		RepositoryCode: company.RepositoryCode,
		Date:           doc.Date,
		IssuerNIF:      company.NIF,
		LEDCode:        company.LEDCode,
		Type:           doc.Type,
		Sequence:       doc.Sequence,
		RandomCode:     doc.RandomCode,
	})
	if err != nil {
		return nil, err
	}

	ApplyTotals(doc, cfg.WithholdingRate)
	issuedAt := now.UTC()
	doc.IUD = iud
	doc.DisplayID = DisplayID(doc.Type, doc.Series, doc.Date, doc.Sequence)
	doc.IssuedAt = &issuedAt
	doc.FiscalStatus = entity.FiscalStatusNotSent
	doc.FiscalError = ""
	doc.UpdatedAt = issuedAt

	base := entity.SettlementBase{
		CompanyID:  doc.CompanyID,
		DocumentID: doc.ID,
		IUD:        iud,
		Amount:     doc.Total,
		OccurredAt: issuedAt,
	}
	if pkgfiscal.IsAutoSettled(doc.Type) {
		doc.Status = entity.StatusPaid
		return entity.AutoSettlement{SettlementBase: base}, nil
	}
	doc.Status = entity.StatusIssued
	return entity.PendingSettlement{SettlementBase: base, DueDate: doc.DueDate}, nil
}

// RegisterPayment ISSUED -> PAID.
func RegisterPayment(doc *entity.Document, now time.Time) error {
	if doc.Status != entity.StatusIssued {
		return fmt.Errorf("%w: pago sobre documento en %s", domain.ErrInvalidTransition, doc.Status)
	}
	doc.Status = entity.StatusPaid
	doc.UpdatedAt = now.UTC()
	return nil
}

// Void ISSUED -> VOID. Estado terminal: totales e IUD no se tocan.
func Void(doc *entity.Document, reason string, now time.Time) error {
	if doc.Status != entity.StatusIssued {
		return fmt.Errorf("%w: anulación sobre documento en %s", domain.ErrInvalidTransition, doc.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: el motivo de anulación es obligatorio", domain.ErrInvalidInput)
	}
	doc.Status = entity.StatusVoid
	doc.VoidReason = reason
	doc.UpdatedAt = now.UTC()
	return nil
}

var fiscalTransitions = map[string][]string{
	entity.FiscalStatusNotSent:     {entity.FiscalStatusPending},
	entity.FiscalStatusFailed:      {entity.FiscalStatusPending},
	entity.FiscalStatusPending:     {entity.FiscalStatusTransmitted, entity.FiscalStatusFailed, entity.FiscalStatusPending},
	entity.FiscalStatusTransmitted: nil,
}

// SetFiscalStatus cambia el estado de transmisión de un documento emitido.
// Pasar a PENDING cuenta un intento; FAILED guarda el texto del error. PENDING -> PENDING es
// el reintento de un envío abandonado (quien decide que está abandonado es el orquestador).
func SetFiscalStatus(doc *entity.Document, status, errText string) error {
	if doc.IsDraft() {
		return fmt.Errorf("%w: un borrador no se transmite", domain.ErrInvalidTransition)
	}
	current := doc.FiscalStatus
	if current == "" {
		current = entity.FiscalStatusNotSent
	}
	allowed := false
	for _, next := range fiscalTransitions[current] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: transmisión %s -> %s", domain.ErrInvalidTransition, current, status)
	}

	doc.FiscalStatus = status
	switch status {
	case entity.FiscalStatusPending:
		doc.FiscalAttempts++
		doc.FiscalError = ""
	case entity.FiscalStatusFailed:
		doc.FiscalError = errText
	case entity.FiscalStatusTransmitted:
		doc.FiscalError = ""
	}
	return nil
}

// NewCreditNote crea el borrador de nota de crédito contra un documento emitido.
// Copia el cliente y niega las cantidades de las líneas elegidas (todas si no se indica
// ninguna); el precio unitario conserva su signo. El motivo lo fija quien llama.
func NewCreditNote(target *entity.Document, lineIndexes []int) (*entity.Document, error) {
	switch target.Status {
	case entity.StatusIssued, entity.StatusPaid:
	default:
		return nil, fmt.Errorf("%w: no se puede acreditar un documento en %s", domain.ErrInvalidTransition, target.Status)
	}
	if target.Type == pkgfiscal.TypeCreditNote {
		return nil, fmt.Errorf("%w: una nota de crédito no admite otra nota de crédito", domain.ErrInvalidInput)
	}

	if len(lineIndexes) == 0 {
		lineIndexes = make([]int, len(target.Items))
		for i := range lineIndexes {
			lineIndexes[i] = i
		}
	}
	seen := make(map[int]bool, len(lineIndexes))
	items := make([]entity.LineItem, 0, len(lineIndexes))
	for _, idx := range lineIndexes {
		if idx < 0 || idx >= len(target.Items) {
			return nil, fmt.Errorf("%w: línea %d inexistente", domain.ErrInvalidInput, idx)
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: línea %d repetida", domain.ErrInvalidInput, idx)
		}
		seen[idx] = true
		item := target.Items[idx]
		item.Quantity = item.Quantity.Abs().Neg()
		item.Total = decimal.Zero
		items = append(items, item)
	}

	return &entity.Document{
		CompanyID:           target.CompanyID,
		Type:                pkgfiscal.TypeCreditNote,
		Client:              target.Client,
		Items:               items,
		Retention:           target.Retention,
		Status:              entity.StatusDraft,
		ReferenceDocumentID: target.ID,
		ReferenceIUD:        target.IUD,
	}, nil
}

func ensureEditable(doc *entity.Document) error {
	if !doc.IsDraft() {
		return domain.ErrImmutableDocument
	}
	if doc.IsReserved() {
		return domain.ErrFinalizeInProgress
	}
	return nil
}
