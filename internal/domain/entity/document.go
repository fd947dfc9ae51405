package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-api/pkg/fiscal"
)

// Estados legales del documento.
const (
	StatusDraft  = "DRAFT"  // Borrador editable
	StatusIssued = "ISSUED" // Emitido, pendiente de pago
	StatusPaid   = "PAID"   // Liquidado
	StatusVoid   = "VOID"   // Anulado (terminal)
)

// Estados de transmisión a la autoridad tributaria (independientes de la emisión).
const (
	FiscalStatusNotSent     = "NOT_SENT"
	FiscalStatusPending     = "PENDING"
	FiscalStatusTransmitted = "TRANSMITTED"
	FiscalStatusFailed      = "FAILED"
)

// Document representa un documento de venta: borrador mientras Status = DRAFT,
// documento legal inmutable a partir de ISSUED (salvo Status y FiscalStatus).
type Document struct {
	ID        string
	CompanyID string
	Type      fiscal.DocumentType
	Date      time.Time
	DueDate   *time.Time
	Client    ClientRef
	Items     []LineItem
	Notes     string
	Retention bool // aplica retención en la fuente sobre el subtotal

	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Withholding decimal.Decimal
	Total       decimal.Decimal

	Status string

	// Reserva de emisión: se fija una sola vez, en la misma transacción que asigna el consecutivo.
	Series     string
	Sequence   int64  // consecutivo interno por serie (0 = sin reservar)
	RandomCode string // componente aleatorio del IUD (10 dígitos), nunca se regenera

	DisplayID string // ej: "FTE A2024/007"
	IUD       string // Identificador Único del Documento (45 caracteres)
	IssuedAt  *time.Time

	FiscalStatus   string
	FiscalError    string
	FiscalAttempts int
	FiscalDigest   string // SHA-256 del XML canónico transmitido

	// Nota de crédito
	ReferenceDocumentID string
	ReferenceIUD        string
	Reason              string

	VoidReason string
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsDraft indica si el documento sigue siendo editable por estado.
func (d *Document) IsDraft() bool {
	return d.Status == StatusDraft
}

// IsReserved indica si el borrador ya tiene consecutivo asignado (finalización en curso).
func (d *Document) IsReserved() bool {
	return d.Sequence > 0
}

// ClientRef copia de los datos del cliente tomada del directorio al editar el borrador.
type ClientRef struct {
	ClientID string
	TaxID    string // NIF
	Address  string
	Name     string
}

// IsEmpty indica que el documento no tiene cliente asignado.
func (c ClientRef) IsEmpty() bool {
	return c.ClientID == ""
}
