// Package fiscal contiene catálogos y validaciones del régimen de factura electrónica
// (DFE): tipos de documento, códigos del IUD y dígito de control del NIF.
package fiscal

// =============================================================================
// Tipos de documento fiscal electrónico
// Siglas usadas en el identificador visible (ej: "FTE A2024/007").
// =============================================================================

// DocumentType sigla del tipo de documento.
type DocumentType string

const (
	TypeInvoice        DocumentType = "FTE" // Factura
	TypeReceiptInvoice DocumentType = "FRE" // Factura-recibo (liquidación inmediata)
	TypeSalesSlip      DocumentType = "TVE" // Talón de venta (venta al mostrador)
	TypeReceipt        DocumentType = "RCE" // Recibo
	TypeCreditNote     DocumentType = "NCE" // Nota de crédito
	TypeDebitNote      DocumentType = "NDE" // Nota de débito
	TypeDeliveryNote   DocumentType = "DVE" // Nota de devolución
	TypeShippingNote   DocumentType = "GTE" // Guía de transporte
	TypeLiquidation    DocumentType = "NLE" // Nota de liquidación
)

// iudTypeCodes tabla cerrada de códigos de 2 dígitos para el campo 8 del IUD.
var iudTypeCodes = map[DocumentType]string{
	TypeInvoice:        "01",
	TypeReceiptInvoice: "02",
	TypeSalesSlip:      "03",
	TypeReceipt:        "04",
	TypeCreditNote:     "05",
	TypeDebitNote:      "06",
	TypeDeliveryNote:   "07",
	TypeShippingNote:   "08",
	TypeLiquidation:    "09",
}

// IUDTypeCode devuelve el código de 2 dígitos del tipo; ok=false si el tipo no está en la tabla.
func IUDTypeCode(t DocumentType) (string, bool) {
	code, ok := iudTypeCodes[t]
	return code, ok
}

// EmittableTypes tipos que el motor puede emitir desde un borrador.
var EmittableTypes = map[DocumentType]bool{
	TypeInvoice:        true,
	TypeReceiptInvoice: true,
	TypeSalesSlip:      true,
	TypeCreditNote:     true,
}

// IsEmittable indica si el tipo puede crearse como borrador y emitirse.
func IsEmittable(t DocumentType) bool {
	return EmittableTypes[t]
}

// IsAutoSettled indica si el tipo se liquida en el mismo momento de la emisión.
// La factura (FTE) queda pendiente de pago hasta que llegue un evento de pago.
func IsAutoSettled(t DocumentType) bool {
	switch t {
	case TypeReceiptInvoice, TypeSalesSlip, TypeCreditNote:
		return true
	}
	return false
}

// IsRelaxed indica si el tipo aplica la validación relajada (venta al mostrador).
func IsRelaxed(t DocumentType) bool {
	return t == TypeSalesSlip
}

// =============================================================================
// Parámetros fijos del IUD
// =============================================================================

const (
	CountryCodeCaboVerde = "CV"
	IUDLength            = 45
	RandomCodeLength     = 10
)
