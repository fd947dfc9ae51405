package entity

import "github.com/shopspring/decimal"

// LineItem representa una línea de un documento. El impuesto se calcula aparte (Totals Calculator).
type LineItem struct {
	Description string
	Code        string          // código externo opcional (SKU)
	Quantity    decimal.Decimal // > 0; negativa solo en notas de crédito
	UnitPrice   decimal.Decimal // >= 0
	TaxRate     decimal.Decimal // porcentaje 0-100 (ej: 15)
	Total       decimal.Decimal // Quantity * UnitPrice redondeado al céntimo
}
