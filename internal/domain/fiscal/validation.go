package fiscal

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
)

// Campos reportados en los errores de validación.
const (
	FieldType         = "type"
	FieldDate         = "date"
	FieldClient       = "client"
	FieldClientTaxID  = "client.tax_id"
	FieldClientAddr   = "client.address"
	FieldItems        = "items"
	FieldReferenceDoc = "reference_document_id"
	FieldReason       = "reason"
)

const minAddressLength = 3

var maxTaxRate = decimal.NewFromInt(100)

// TaxIDValidator valida el dígito de control del identificador fiscal del cliente.
type TaxIDValidator interface {
	Valid(taxID string) bool
}

// ValidationIssue par (campo, mensaje) de un borrador no apto para emisión.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i ValidationIssue) String() string {
	return i.Field + ": " + i.Message
}

// ValidateDraft aplica las reglas fiscales del tipo de documento. Nunca falla:
// una lista vacía significa que el borrador está listo para emitirse.
//
// FTE, FRE y NCE exigen NIF válido y dirección; TVE (venta al mostrador) solo valida el NIF
// si viene informado. NCE exige además documento de referencia y motivo.
func ValidateDraft(doc *entity.Document, taxIDs TaxIDValidator) []ValidationIssue {
	var issues []ValidationIssue
	add := func(field, msg string) {
		issues = append(issues, ValidationIssue{Field: field, Message: msg})
	}

	if !pkgfiscal.IsEmittable(doc.Type) {
		add(FieldType, fmt.Sprintf("tipo de documento %q no emitible", doc.Type))
	}
	if doc.Date.IsZero() {
		add(FieldDate, "la fecha del documento es obligatoria")
	}

	if doc.Client.IsEmpty() {
		add(FieldClient, "el cliente es obligatorio")
	}

	relaxed := pkgfiscal.IsRelaxed(doc.Type)
	taxID := strings.TrimSpace(doc.Client.TaxID)
	switch {
	case taxID == "" && !relaxed:
		add(FieldClientTaxID, "el NIF del cliente es obligatorio")
	case taxID != "" && !taxIDs.Valid(taxID):
		add(FieldClientTaxID, "el NIF del cliente no es válido")
	}
	if !relaxed && utf8.RuneCountInString(strings.TrimSpace(doc.Client.Address)) < minAddressLength {
		add(FieldClientAddr, fmt.Sprintf("la dirección del cliente debe tener al menos %d caracteres", minAddressLength))
	}

	if len(doc.Items) == 0 {
		add(FieldItems, "el documento debe tener al menos una línea")
	}
	creditNote := doc.Type == pkgfiscal.TypeCreditNote
	for i, item := range doc.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.Description) == "" {
			add(prefix+".description", "la descripción es obligatoria")
		}
		if creditNote {
			if !item.Quantity.IsNegative() {
				add(prefix+".quantity", "en una nota de crédito la cantidad debe ser negativa")
			}
		} else if !item.Quantity.IsPositive() {
			add(prefix+".quantity", "la cantidad debe ser mayor que cero")
		}
		if item.UnitPrice.IsNegative() {
			add(prefix+".unit_price", "el precio unitario no puede ser negativo")
		}
		if item.TaxRate.IsNegative() || item.TaxRate.GreaterThan(maxTaxRate) {
			add(prefix+".tax_rate", "la tasa de impuesto debe estar entre 0 y 100")
		}
	}

	if creditNote {
		if strings.TrimSpace(doc.ReferenceDocumentID) == "" {
			add(FieldReferenceDoc, "la nota de crédito debe referenciar un documento emitido")
		}
		if strings.TrimSpace(doc.Reason) == "" {
			add(FieldReason, "la nota de crédito debe indicar el motivo")
		}
	}
	return issues
}

// ValidateCreditNote contrasta una nota de crédito con su documento origen en el momento de
// emitirla: el origen debe seguir acreditable y cada línea debe ser la negación de una línea
// distinta del origen. origin nil significa que el origen no existe.
func ValidateCreditNote(note, origin *entity.Document) []ValidationIssue {
	var issues []ValidationIssue
	add := func(field, msg string) {
		issues = append(issues, ValidationIssue{Field: field, Message: msg})
	}

	if origin == nil || origin.CompanyID != note.CompanyID {
		add(FieldReferenceDoc, "el documento referenciado no existe")
		return issues
	}
	if origin.Type == pkgfiscal.TypeCreditNote {
		add(FieldReferenceDoc, "una nota de crédito no puede referenciar otra nota de crédito")
		return issues
	}
	switch origin.Status {
	case entity.StatusIssued, entity.StatusPaid:
	default:
		add(FieldReferenceDoc, fmt.Sprintf("el documento referenciado está en %s y ya no admite notas de crédito", origin.Status))
		return issues
	}
	if note.ReferenceIUD != origin.IUD {
		add(FieldReferenceDoc, "el IUD de referencia no coincide con el del documento origen")
	}
	if note.Client.ClientID != origin.Client.ClientID {
		add(FieldClient, "el cliente debe ser el del documento origen")
	}

	used := make([]bool, len(origin.Items))
	for i, item := range note.Items {
		idx := creditedLine(item, origin.Items, used)
		if idx < 0 {
			add(fmt.Sprintf("items[%d]", i), "la línea no corresponde a ninguna línea del documento origen")
			continue
		}
		used[idx] = true
	}
	return issues
}

func creditedLine(item entity.LineItem, lines []entity.LineItem, used []bool) int {
	for i, line := range lines {
		if used[i] {
			continue
		}
		if item.Description == line.Description &&
			item.Code == line.Code &&
			item.Quantity.Equal(line.Quantity.Abs().Neg()) &&
			item.UnitPrice.Equal(line.UnitPrice) &&
			item.TaxRate.Equal(line.TaxRate) {
			return i
		}
	}
	return -1
}
