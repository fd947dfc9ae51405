package fiscal_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/fiscal"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
)

func validDraft(t pkgfiscal.DocumentType) *entity.Document {
	return &entity.Document{
		Type: t,
		Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Client: entity.ClientRef{
			ClientID: "cli-1",
			TaxID:    "100000002",
			Address:  "Rua Principal 10, Praia",
			Name:     "Cliente Exemplo",
		},
		Items:  scenarioItems(),
		Status: entity.StatusDraft,
	}
}

func fields(issues []fiscal.ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Field)
	}
	return out
}

func TestValidateDraft_Validos(t *testing.T) {
	for _, typ := range []pkgfiscal.DocumentType{pkgfiscal.TypeInvoice, pkgfiscal.TypeReceiptInvoice, pkgfiscal.TypeSalesSlip} {
		t.Run(string(typ), func(t *testing.T) {
			assert.Empty(t, fiscal.ValidateDraft(validDraft(typ), pkgfiscal.Mod11Validator{}))
		})
	}
}

func TestValidateDraft_TablaPorTipo(t *testing.T) {
	tests := []struct {
		name   string
		typ    pkgfiscal.DocumentType
		mutate func(d *entity.Document)
		want   []string
	}{
		{"factura sin NIF", pkgfiscal.TypeInvoice, func(d *entity.Document) { d.Client.TaxID = "" }, []string{fiscal.FieldClientTaxID}},
		{"talon sin NIF", pkgfiscal.TypeSalesSlip, func(d *entity.Document) { d.Client.TaxID = "" }, nil},
		{"factura NIF inválido", pkgfiscal.TypeInvoice, func(d *entity.Document) { d.Client.TaxID = "100000003" }, []string{fiscal.FieldClientTaxID}},
		{"talon NIF inválido", pkgfiscal.TypeSalesSlip, func(d *entity.Document) { d.Client.TaxID = "100000003" }, []string{fiscal.FieldClientTaxID}},
		{"factura-recibo sin dirección", pkgfiscal.TypeReceiptInvoice, func(d *entity.Document) { d.Client.Address = "ab" }, []string{fiscal.FieldClientAddr}},
		{"talon sin dirección", pkgfiscal.TypeSalesSlip, func(d *entity.Document) { d.Client.Address = "" }, nil},
		{"sin cliente", pkgfiscal.TypeSalesSlip, func(d *entity.Document) { d.Client = entity.ClientRef{} }, []string{fiscal.FieldClient}},
		{"sin líneas", pkgfiscal.TypeInvoice, func(d *entity.Document) { d.Items = nil }, []string{fiscal.FieldItems}},
		{"cantidad cero", pkgfiscal.TypeInvoice, func(d *entity.Document) { d.Items[0].Quantity = decimal.Zero }, []string{"items[0].quantity"}},
		{"precio negativo", pkgfiscal.TypeInvoice, func(d *entity.Document) { d.Items[1].UnitPrice = decimal.NewFromInt(-1) }, []string{"items[1].unit_price"}},
		{"tasa fuera de rango", pkgfiscal.TypeInvoice, func(d *entity.Document) { d.Items[0].TaxRate = decimal.NewFromInt(101) }, []string{"items[0].tax_rate"}},
		{"tipo no emitible", pkgfiscal.TypeDebitNote, func(d *entity.Document) {}, []string{fiscal.FieldType}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft(tt.typ)
			tt.mutate(d)
			issues := fiscal.ValidateDraft(d, pkgfiscal.Mod11Validator{})
			assert.ElementsMatch(t, tt.want, fields(issues))
		})
	}
}

func TestValidateDraft_NotaCredito(t *testing.T) {
	d := validDraft(pkgfiscal.TypeCreditNote)
	for i := range d.Items {
		d.Items[i].Quantity = d.Items[i].Quantity.Neg()
	}
	issues := fiscal.ValidateDraft(d, pkgfiscal.Mod11Validator{})
	assert.ElementsMatch(t, []string{fiscal.FieldReferenceDoc, fiscal.FieldReason}, fields(issues))

	d.ReferenceDocumentID = "doc-1"
	d.Reason = "Devolución de mercancía"
	assert.Empty(t, fiscal.ValidateDraft(d, pkgfiscal.Mod11Validator{}))

	// cantidades positivas no son válidas en una nota de crédito
	d.Items[0].Quantity = decimal.NewFromInt(1)
	assert.Equal(t, []string{"items[0].quantity"}, fields(fiscal.ValidateDraft(d, pkgfiscal.Mod11Validator{})))
}
