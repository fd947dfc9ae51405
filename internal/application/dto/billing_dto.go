package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// DraftRequest body para POST /api/documents y PUT /api/documents/:id.
// Date y DueDate en formato AAAA-MM-DD. En PUT, client_id vacío conserva el cliente actual:
// el cliente se sustituye por otro, no se quita. En una nota de crédito solo cuentan date, notes
// y reason; cliente y líneas, si se envían, deben coincidir con los del documento origen.
type DraftRequest struct {
	Type      string            `json:"type"` // FTE | FRE | TVE | NCE
	Date      string            `json:"date,omitempty"`
	DueDate   string            `json:"due_date,omitempty"`
	ClientID  string            `json:"client_id"`
	Items     []LineItemRequest `json:"items"`
	Notes     string            `json:"notes,omitempty"`
	Retention bool              `json:"retention"`
	Reason    string            `json:"reason,omitempty"` // motivo (solo nota de crédito)
}

// LineItemRequest línea del borrador.
type LineItemRequest struct {
	Description string          `json:"description"`
	Code        string          `json:"code,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"` // porcentaje 0-100
}

// CreditNoteRequest body para POST /api/documents/:id/credit-notes.
// Lines vacío acredita todas las líneas del documento origen.
type CreditNoteRequest struct {
	Lines  []int  `json:"lines,omitempty"`
	Reason string `json:"reason"`
}

// VoidRequest body para POST /api/documents/:id/void.
type VoidRequest struct {
	Reason string `json:"reason"`
}

// DocumentResponse documento (borrador o emitido) en respuestas.
type DocumentResponse struct {
	ID          string             `json:"id"`
	CompanyID   string             `json:"company_id"`
	Type        string             `json:"type"`
	Status      string             `json:"status"`
	Date        string             `json:"date"`
	DueDate     string             `json:"due_date,omitempty"`
	Client      ClientResponse     `json:"client"`
	Items       []LineItemResponse `json:"items"`
	Notes       string             `json:"notes,omitempty"`
	Retention   bool               `json:"retention"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	Tax         decimal.Decimal    `json:"tax"`
	Withholding decimal.Decimal    `json:"withholding"`
	Total       decimal.Decimal    `json:"total"`

	Series     string     `json:"series,omitempty"`
	Sequence   int64      `json:"sequence,omitempty"`
	DisplayID  string     `json:"display_id,omitempty"` // ej: "FTE A2024/007"
	IUD        string     `json:"iud,omitempty"`
	IssuedAt   *time.Time `json:"issued_at,omitempty"`
	VoidReason string     `json:"void_reason,omitempty"`

	FiscalStatus   string `json:"fiscal_status,omitempty"` // NOT_SENT|PENDING|TRANSMITTED|FAILED
	FiscalError    string `json:"fiscal_error,omitempty"`
	FiscalAttempts int    `json:"fiscal_attempts,omitempty"`

	ReferenceDocumentID string `json:"reference_document_id,omitempty"`
	ReferenceIUD        string `json:"reference_iud,omitempty"`
	Reason              string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientResponse copia del cliente guardada en el documento.
type ClientResponse struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	TaxID   string `json:"tax_id,omitempty"`
	Address string `json:"address,omitempty"`
}

// LineItemResponse línea con su total calculado.
type LineItemResponse struct {
	Description string          `json:"description"`
	Code        string          `json:"code,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Total       decimal.Decimal `json:"total"`
}

// TransmissionStatusDTO respuesta ligera tras solicitar un reintento de transmisión.
type TransmissionStatusDTO struct {
	ID             string `json:"id"`
	FiscalStatus   string `json:"fiscal_status"`
	FiscalAttempts int    `json:"fiscal_attempts"`
	FiscalError    string `json:"fiscal_error,omitempty"`
}
