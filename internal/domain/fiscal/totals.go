// Package fiscal contiene las reglas de dominio del motor de documentos fiscales:
// cálculo de totales, validación por tipo, codificación del IUD y máquina de estados.
package fiscal

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/pkg/money"
)

// Totals resultado del cálculo de totales de un documento.
type Totals struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Withholding decimal.Decimal
	Total       decimal.Decimal
}

// LineTotal cantidad * precio unitario redondeado al céntimo.
func LineTotal(item entity.LineItem) decimal.Decimal {
	return money.Round(item.Quantity.Mul(item.UnitPrice))
}

// CalculateTotals deriva subtotal, impuesto, retención y total de las líneas.
//
//	subtotal    = Σ round(qty × precio)
//	impuesto    = Σ round(qty × precio × tasa / 100)
//	retención   = retention ? round(subtotal × withholdingRate) : 0
//	total       = subtotal + impuesto − retención
//
// withholdingRate es una fracción (0.04 = 4 %). Para notas de crédito las líneas ya llegan
// con signo invertido, así que el total resulta ≤ 0 sin fórmula especial.
func CalculateTotals(items []entity.LineItem, retention bool, withholdingRate decimal.Decimal) Totals {
	subtotal := money.Zero
	tax := money.Zero
	for _, item := range items {
		subtotal = money.Add(subtotal, LineTotal(item))
		tax = money.Add(tax, money.Percent(item.Quantity.Mul(item.UnitPrice), item.TaxRate))
	}
	withholding := money.Zero
	if retention {
		withholding = money.Mul(subtotal, withholdingRate)
	}
	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		Withholding: withholding,
		Total:       money.Sub(money.Add(subtotal, tax), withholding),
	}
}

// ApplyTotals recalcula totales y totales de línea del documento.
func ApplyTotals(doc *entity.Document, withholdingRate decimal.Decimal) {
	for i := range doc.Items {
		doc.Items[i].Total = LineTotal(doc.Items[i])
	}
	t := CalculateTotals(doc.Items, doc.Retention, withholdingRate)
	doc.Subtotal = t.Subtotal
	doc.Tax = t.Tax
	doc.Withholding = t.Withholding
	doc.Total = t.Total
}
