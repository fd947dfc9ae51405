package fiscal_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/fiscal"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
)

var issueNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func testCompany() *entity.Company {
	return &entity.Company{ID: "comp-1", NIF: "123456789", LEDCode: "00001", RepositoryCode: "1"}
}

func issueCfg() fiscal.IssueConfig {
	return fiscal.IssueConfig{CountryCode: pkgfiscal.CountryCodeCaboVerde, WithholdingRate: withholdingRate}
}

func issuedDoc(t *testing.T, typ pkgfiscal.DocumentType) *entity.Document {
	t.Helper()
	d := validDraft(typ)
	d.ID = "doc-1"
	d.CompanyID = "comp-1"
	require.NoError(t, fiscal.Reserve(d, "A", 7, "0123456789"))
	_, err := fiscal.Issue(d, testCompany(), issueCfg(), issueNow)
	require.NoError(t, err)
	return d
}

func TestApplyDraft_RecalculaTotales(t *testing.T) {
	d := &entity.Document{Status: entity.StatusDraft}
	client := entity.ClientRef{ClientID: "cli-1", TaxID: "100000002", Address: "Rua 1, Praia"}
	err := fiscal.ApplyDraft(d, fiscal.DraftChanges{
		Type:      pkgfiscal.TypeInvoice,
		Date:      issueNow,
		Client:    &client,
		Items:     scenarioItems(),
		Retention: true,
		Notes:     "  entrega en tienda ",
	}, withholdingRate)
	require.NoError(t, err)

	assert.Equal(t, pkgfiscal.TypeInvoice, d.Type)
	assert.Equal(t, "entrega en tienda", d.Notes)
	assert.Equal(t, "cli-1", d.Client.ClientID)
	assert.True(t, d.Total.Equal(decimal.NewFromInt(381)), "total %s", d.Total)

	// sin cliente en los cambios se conserva el actual
	require.NoError(t, fiscal.ApplyDraft(d, fiscal.DraftChanges{Items: scenarioItems()}, withholdingRate))
	assert.Equal(t, "cli-1", d.Client.ClientID)
	assert.True(t, d.Total.Equal(decimal.NewFromInt(395)), "total %s", d.Total)
}

func TestApplyDraft_Inmutable(t *testing.T) {
	d := issuedDoc(t, pkgfiscal.TypeInvoice)
	before := *d

	err := fiscal.ApplyDraft(d, fiscal.DraftChanges{Notes: "cambio"}, withholdingRate)
	assert.ErrorIs(t, err, domain.ErrImmutableDocument)
	assert.Equal(t, before, *d)
}

func TestApplyDraft_ReservaEnCurso(t *testing.T) {
	d := validDraft(pkgfiscal.TypeInvoice)
	require.NoError(t, fiscal.Reserve(d, "A", 3, "0000000001"))

	err := fiscal.ApplyDraft(d, fiscal.DraftChanges{Notes: "x"}, withholdingRate)
	assert.ErrorIs(t, err, domain.ErrFinalizeInProgress)
}

func TestApplyDraft_NotaCreditoNoCambiaTipo(t *testing.T) {
	d := validDraft(pkgfiscal.TypeCreditNote)
	err := fiscal.ApplyDraft(d, fiscal.DraftChanges{Type: pkgfiscal.TypeInvoice}, withholdingRate)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// y una factura no se convierte en nota de crédito
	inv := validDraft(pkgfiscal.TypeInvoice)
	err = fiscal.ApplyDraft(inv, fiscal.DraftChanges{Type: pkgfiscal.TypeCreditNote, Items: scenarioItems()}, withholdingRate)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, pkgfiscal.TypeInvoice, inv.Type)
}

func creditNoteDraft(t *testing.T) (*entity.Document, *entity.Document) {
	t.Helper()
	target := issuedDoc(t, pkgfiscal.TypeInvoice)
	nc, err := fiscal.NewCreditNote(target, []int{0})
	require.NoError(t, err)
	nc.ID = "nc-1"
	nc.Date = issueNow
	nc.Reason = "Devolución"
	fiscal.ApplyTotals(nc, withholdingRate)
	return target, nc
}

func TestApplyDraft_NotaCreditoSoloCabecera(t *testing.T) {
	_, nc := creditNoteDraft(t)
	total := nc.Total
	lines := append([]entity.LineItem(nil), nc.Items...)

	forged := append([]entity.LineItem(nil), nc.Items...)
	forged[0].UnitPrice = forged[0].UnitPrice.Mul(decimal.NewFromInt(10))
	err := fiscal.ApplyDraft(nc, fiscal.DraftChanges{Items: forged, Reason: "x"}, withholdingRate)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	other := entity.ClientRef{ClientID: "cli-9", TaxID: "100000002", Address: "Rua 2"}
	err = fiscal.ApplyDraft(nc, fiscal.DraftChanges{Client: &other, Reason: "x"}, withholdingRate)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Equal(t, lines, nc.Items)
	assert.True(t, nc.Total.Equal(total))

	// mismas líneas y mismo cliente: solo cambian fecha, notas y motivo
	same := nc.Client
	date := issueNow.AddDate(0, 0, 1)
	err = fiscal.ApplyDraft(nc, fiscal.DraftChanges{
		Date: date, Client: &same, Items: lines, Notes: " nota ", Reason: " Rotura ", Retention: !nc.Retention,
	}, withholdingRate)
	require.NoError(t, err)
	assert.Equal(t, date, nc.Date)
	assert.Equal(t, "nota", nc.Notes)
	assert.Equal(t, "Rotura", nc.Reason)
	assert.True(t, nc.Total.Equal(total))
}

func TestValidateCreditNote(t *testing.T) {
	target, nc := creditNoteDraft(t)
	assert.Empty(t, fiscal.ValidateCreditNote(nc, target))

	assert.Equal(t, []string{fiscal.FieldReferenceDoc}, fields(fiscal.ValidateCreditNote(nc, nil)))

	forged := *nc
	forged.Items = append([]entity.LineItem(nil), nc.Items...)
	forged.Items[0].UnitPrice = decimal.NewFromInt(1000)
	assert.Equal(t, []string{"items[0]"}, fields(fiscal.ValidateCreditNote(&forged, target)))

	// la misma línea del origen no se acredita dos veces
	forged.Items = []entity.LineItem{nc.Items[0], nc.Items[0]}
	assert.Equal(t, []string{"items[1]"}, fields(fiscal.ValidateCreditNote(&forged, target)))

	forged = *nc
	forged.ReferenceIUD = "CV0000000000000000000000000000000000000000000"
	assert.Equal(t, []string{fiscal.FieldReferenceDoc}, fields(fiscal.ValidateCreditNote(&forged, target)))

	require.NoError(t, fiscal.Void(target, "error", issueNow))
	assert.Equal(t, []string{fiscal.FieldReferenceDoc}, fields(fiscal.ValidateCreditNote(nc, target)))
}

func TestReserve(t *testing.T) {
	d := validDraft(pkgfiscal.TypeInvoice)
	assert.ErrorIs(t, fiscal.Reserve(d, "", 1, "0123456789"), domain.ErrInvalidInput)
	assert.ErrorIs(t, fiscal.Reserve(d, "A", 0, "0123456789"), domain.ErrInvalidInput)
	assert.ErrorIs(t, fiscal.Reserve(d, "A", 1, "12"), domain.ErrInvalidInput)

	require.NoError(t, fiscal.Reserve(d, "A", 1, "0123456789"))
	assert.Equal(t, int64(1), d.Sequence)
	// una segunda reserva nunca pisa la primera
	assert.ErrorIs(t, fiscal.Reserve(d, "A", 2, "9999999999"), domain.ErrFinalizeInProgress)
	assert.Equal(t, "0123456789", d.RandomCode)
}

func TestIssue_Factura(t *testing.T) {
	d := validDraft(pkgfiscal.TypeInvoice)
	d.ID = "doc-1"
	d.CompanyID = "comp-1"
	due := issueNow.AddDate(0, 0, 30)
	d.DueDate = &due
	require.NoError(t, fiscal.Reserve(d, "A", 7, "0123456789"))

	ev, err := fiscal.Issue(d, testCompany(), issueCfg(), issueNow)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusIssued, d.Status)
	assert.Equal(t, "CV1240315123456789000010100000000701234567898", d.IUD)
	assert.Equal(t, "FTE A2024/007", d.DisplayID)
	assert.Equal(t, entity.FiscalStatusNotSent, d.FiscalStatus)
	require.NotNil(t, d.IssuedAt)

	pending, ok := ev.(entity.PendingSettlement)
	require.True(t, ok, "evento %T", ev)
	assert.Equal(t, entity.SettlementKindPending, pending.Kind())
	assert.Equal(t, "doc-1", pending.DocumentID)
	assert.Equal(t, d.IUD, pending.IUD)
	assert.True(t, pending.Amount.Equal(decimal.NewFromInt(395)))
	assert.Equal(t, &due, pending.DueDate)
}

func TestIssue_LiquidacionInmediata(t *testing.T) {
	for _, typ := range []pkgfiscal.DocumentType{pkgfiscal.TypeReceiptInvoice, pkgfiscal.TypeSalesSlip} {
		t.Run(string(typ), func(t *testing.T) {
			d := validDraft(typ)
			require.NoError(t, fiscal.Reserve(d, "A", 1, "0123456789"))
			ev, err := fiscal.Issue(d, testCompany(), issueCfg(), issueNow)
			require.NoError(t, err)

			assert.Equal(t, entity.StatusPaid, d.Status)
			assert.IsType(t, entity.AutoSettlement{}, ev)
			assert.Equal(t, entity.SettlementKindAuto, ev.Kind())
		})
	}
}

func TestIssue_SinReserva(t *testing.T) {
	d := validDraft(pkgfiscal.TypeInvoice)
	_, err := fiscal.Issue(d, testCompany(), issueCfg(), issueNow)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Empty(t, d.IUD)
	assert.Equal(t, entity.StatusDraft, d.Status)
}

func TestIssue_EmisorInvalido(t *testing.T) {
	d := validDraft(pkgfiscal.TypeInvoice)
	require.NoError(t, fiscal.Reserve(d, "A", 1, "0123456789"))
	company := testCompany()
	company.LEDCode = "1234567"

	_, err := fiscal.Issue(d, company, issueCfg(), issueNow)
	assert.ErrorIs(t, err, fiscal.ErrInvalidIUDParams)
	assert.Equal(t, entity.StatusDraft, d.Status)
	assert.Empty(t, d.IUD)
}

func TestIssue_DosVeces(t *testing.T) {
	d := issuedDoc(t, pkgfiscal.TypeInvoice)
	iud := d.IUD
	_, err := fiscal.Issue(d, testCompany(), issueCfg(), issueNow.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, iud, d.IUD)
}

func TestRegisterPaymentYVoid(t *testing.T) {
	d := issuedDoc(t, pkgfiscal.TypeInvoice)
	total := d.Total
	iud := d.IUD

	require.NoError(t, fiscal.RegisterPayment(d, issueNow))
	assert.Equal(t, entity.StatusPaid, d.Status)
	assert.ErrorIs(t, fiscal.RegisterPayment(d, issueNow), domain.ErrInvalidTransition)
	assert.ErrorIs(t, fiscal.Void(d, "error", issueNow), domain.ErrInvalidTransition)

	v := issuedDoc(t, pkgfiscal.TypeInvoice)
	assert.ErrorIs(t, fiscal.Void(v, "  ", issueNow), domain.ErrInvalidInput)
	require.NoError(t, fiscal.Void(v, "Emitida por error", issueNow))
	assert.Equal(t, entity.StatusVoid, v.Status)
	assert.Equal(t, "Emitida por error", v.VoidReason)
	assert.True(t, v.Total.Equal(total))
	assert.Equal(t, iud, v.IUD)

	// VOID es terminal
	assert.ErrorIs(t, fiscal.RegisterPayment(v, issueNow), domain.ErrInvalidTransition)
	assert.ErrorIs(t, fiscal.ApplyDraft(v, fiscal.DraftChanges{}, withholdingRate), domain.ErrImmutableDocument)
}

func TestRegisterPayment_Borrador(t *testing.T) {
	assert.ErrorIs(t, fiscal.RegisterPayment(validDraft(pkgfiscal.TypeInvoice), issueNow), domain.ErrInvalidTransition)
}

func TestSetFiscalStatus(t *testing.T) {
	d := issuedDoc(t, pkgfiscal.TypeInvoice)

	assert.ErrorIs(t, fiscal.SetFiscalStatus(d, entity.FiscalStatusTransmitted, ""), domain.ErrInvalidTransition)

	require.NoError(t, fiscal.SetFiscalStatus(d, entity.FiscalStatusPending, ""))
	require.NoError(t, fiscal.SetFiscalStatus(d, entity.FiscalStatusFailed, "timeout"))
	assert.Equal(t, "timeout", d.FiscalError)
	assert.Equal(t, 1, d.FiscalAttempts)

	require.NoError(t, fiscal.SetFiscalStatus(d, entity.FiscalStatusPending, ""))
	require.NoError(t, fiscal.SetFiscalStatus(d, entity.FiscalStatusTransmitted, ""))
	assert.Equal(t, 2, d.FiscalAttempts)
	assert.Empty(t, d.FiscalError)
	assert.Equal(t, entity.StatusIssued, d.Status)

	assert.ErrorIs(t, fiscal.SetFiscalStatus(validDraft(pkgfiscal.TypeInvoice), entity.FiscalStatusPending, ""), domain.ErrInvalidTransition)
}

func TestSetFiscalStatus_PendienteAbandonado(t *testing.T) {
	d := issuedDoc(t, pkgfiscal.TypeInvoice)
	require.NoError(t, fiscal.SetFiscalStatus(d, entity.FiscalStatusPending, ""))
	require.NoError(t, fiscal.SetFiscalStatus(d, entity.FiscalStatusPending, ""))
	assert.Equal(t, 2, d.FiscalAttempts)

	require.NoError(t, fiscal.SetFiscalStatus(d, entity.FiscalStatusTransmitted, ""))
	assert.ErrorIs(t, fiscal.SetFiscalStatus(d, entity.FiscalStatusPending, ""), domain.ErrInvalidTransition)
}

func TestNewCreditNote_TodasLasLineas(t *testing.T) {
	target := issuedDoc(t, pkgfiscal.TypeInvoice)

	nc, err := fiscal.NewCreditNote(target, nil)
	require.NoError(t, err)
	nc.Date = issueNow
	nc.Reason = "Devolución"
	fiscal.ApplyTotals(nc, withholdingRate)

	assert.Equal(t, pkgfiscal.TypeCreditNote, nc.Type)
	assert.Equal(t, entity.StatusDraft, nc.Status)
	assert.Equal(t, target.Client, nc.Client)
	assert.Equal(t, target.ID, nc.ReferenceDocumentID)
	assert.Equal(t, target.IUD, nc.ReferenceIUD)
	require.Len(t, nc.Items, len(target.Items))
	for i, item := range nc.Items {
		assert.True(t, item.Quantity.Equal(target.Items[i].Quantity.Neg()))
		assert.True(t, item.UnitPrice.Equal(target.Items[i].UnitPrice))
	}
	assert.True(t, nc.Total.Equal(target.Total.Neg()), "total %s", nc.Total)
	assert.False(t, nc.Total.IsPositive())
	assert.Empty(t, fiscal.ValidateDraft(nc, pkgfiscal.Mod11Validator{}))
}

func TestNewCreditNote_Parcial(t *testing.T) {
	target := issuedDoc(t, pkgfiscal.TypeInvoice)

	nc, err := fiscal.NewCreditNote(target, []int{1})
	require.NoError(t, err)
	fiscal.ApplyTotals(nc, withholdingRate)
	require.Len(t, nc.Items, 1)
	assert.True(t, nc.Total.Equal(decimal.NewFromInt(-50)), "total %s", nc.Total)

	_, err = fiscal.NewCreditNote(target, []int{5})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = fiscal.NewCreditNote(target, []int{0, 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewCreditNote_Origenes(t *testing.T) {
	_, err := fiscal.NewCreditNote(validDraft(pkgfiscal.TypeInvoice), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	v := issuedDoc(t, pkgfiscal.TypeInvoice)
	require.NoError(t, fiscal.Void(v, "error", issueNow))
	_, err = fiscal.NewCreditNote(v, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	paid := issuedDoc(t, pkgfiscal.TypeReceiptInvoice)
	_, err = fiscal.NewCreditNote(paid, nil)
	assert.NoError(t, err)
}
