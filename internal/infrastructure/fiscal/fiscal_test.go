package fiscal_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	infrafiscal "github.com/jhoicas/Facturacion-api/internal/infrastructure/fiscal"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
)

func issuedDocument() (*entity.Document, *entity.Company) {
	issuedAt := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	doc := &entity.Document{
		ID:        "doc-1",
		CompanyID: "comp-1",
		Type:      pkgfiscal.TypeInvoice,
		Date:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Client:    entity.ClientRef{ClientID: "cli-1", TaxID: "100000002", Name: "Jose\u0301 Lima", Address: "Rua 1, Praia"},
		Items: []entity.LineItem{
			{Description: "Servicio", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(100), TaxRate: decimal.NewFromInt(15)},
		},
		Subtotal:    decimal.NewFromInt(300),
		Tax:         decimal.NewFromInt(45),
		Withholding: decimal.Zero,
		Total:       decimal.NewFromInt(345),
		Status:      entity.StatusIssued,
		Series:      "A",
		Sequence:    7,
		DisplayID:   "FTE A2024/007",
		IUD:         "CV1240315123456789000010100000000701234567898",
		IssuedAt:    &issuedAt,
	}
	company := &entity.Company{ID: "comp-1", Name: "Loja Central", NIF: "123456789", Address: "Av. Cidade", LEDCode: "00001", RepositoryCode: "1"}
	return doc, company
}

func TestXMLBuilder_Campos(t *testing.T) {
	doc, company := issuedDocument()
	out, err := infrafiscal.NewXMLBuilderService().Build(doc, company)
	require.NoError(t, err)

	x := etree.NewDocument()
	require.NoError(t, x.ReadFromBytes(out))
	root := x.Root()
	assert.Equal(t, "Dfe", root.Tag)
	assert.Equal(t, infrafiscal.DFEElementID, root.SelectAttrValue("Id", ""))
	assert.Equal(t, doc.IUD, root.FindElement("IUD").Text())
	assert.Equal(t, "01", root.FindElement("DocumentTypeCode").Text())
	assert.Equal(t, "FTE A2024/007", root.FindElement("DocumentNumber").Text())
	assert.Equal(t, "2024-03-15", root.FindElement("IssueDate").Text())
	assert.Equal(t, "123456789", root.FindElement("Emitter/NIF").Text())
	assert.Equal(t, "300.00", root.FindElement("Lines/Line/LineExtensionAmount").Text())
	assert.Equal(t, "45.00", root.FindElement("Lines/Line/TaxAmount").Text())
	assert.Equal(t, "345.00", root.FindElement("Totals/Total").Text())
	assert.Nil(t, root.FindElement("Reference"))

	// "e" + acento combinante se compone a "é" (NFC)
	assert.Equal(t, "Jos\u00e9 Lima", root.FindElement("Receiver/Name").Text())
}

func TestXMLBuilder_NotaCredito(t *testing.T) {
	doc, company := issuedDocument()
	doc.Type = pkgfiscal.TypeCreditNote
	doc.ReferenceIUD = "CV1240301123456789000010100000000100000000014"
	doc.Reason = "Devolución"

	out, err := infrafiscal.NewXMLBuilderService().Build(doc, company)
	require.NoError(t, err)
	x := etree.NewDocument()
	require.NoError(t, x.ReadFromBytes(out))
	assert.Equal(t, "05", x.Root().FindElement("DocumentTypeCode").Text())
	assert.Equal(t, doc.ReferenceIUD, x.Root().FindElement("Reference/IUD").Text())
}

func TestXMLBuilder_Borrador(t *testing.T) {
	doc, company := issuedDocument()
	doc.Status = entity.StatusDraft
	_, err := infrafiscal.NewXMLBuilderService().Build(doc, company)
	assert.Error(t, err)
}

func TestDigest_FormaCanonica(t *testing.T) {
	a, err := infrafiscal.Digest([]byte(`<a y="2" x="1"><b/></a>`))
	require.NoError(t, err)
	b, err := infrafiscal.Digest([]byte(`<a x="1" y="2"><b></b></a>`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := infrafiscal.Digest([]byte(`<a x="1" y="3"><b></b></a>`))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestDigest_Determinista(t *testing.T) {
	doc, company := issuedDocument()
	out1, err := infrafiscal.NewXMLBuilderService().Build(doc, company)
	require.NoError(t, err)
	out2, err := infrafiscal.NewXMLBuilderService().Build(doc, company)
	require.NoError(t, err)

	d1, err := infrafiscal.Digest(out1)
	require.NoError(t, err)
	d2, err := infrafiscal.Digest(out2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestCompressXMLToZip(t *testing.T) {
	doc, company := issuedDocument()
	xmlName, zipName := infrafiscal.DFEFilenames(company, doc)
	assert.Equal(t, "123456789_"+doc.IUD+".xml", xmlName)
	assert.Equal(t, "123456789_"+doc.IUD+".zip", zipName)

	data, err := infrafiscal.CompressXMLToZip([]byte("<Dfe/>"), xmlName)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, xmlName, zr.File[0].Name)
}

const acceptedResponse = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<SubmitTestDFEResponse xmlns="urn:cv:efatura:ws:v1.0"><SubmitDFEResult>
<HasErrors>false</HasErrors><ReceiptKey>RK-001</ReceiptKey></SubmitDFEResult></SubmitTestDFEResponse>
</s:Body></s:Envelope>`

const rejectedResponse = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<SubmitDFEResponse xmlns="urn:cv:efatura:ws:v1.0"><SubmitDFEResult>
<HasErrors>true</HasErrors><ErrorMessageList><string>NIF inválido</string><string>LED inactivo</string></ErrorMessageList>
</SubmitDFEResult></SubmitDFEResponse></s:Body></s:Envelope>`

func TestSOAPClient_Aceptado(t *testing.T) {
	var gotAction, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(acceptedResponse))
	}))
	defer srv.Close()

	client := infrafiscal.NewSOAPClient(infrafiscal.Endpoints{Test: srv.URL}, 5*time.Second)
	res, err := client.SubmitZip(context.Background(), []byte("zip"), "a.zip", infrafiscal.AppEnvTest)
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.Equal(t, "RK-001", res.TrackID)
	assert.True(t, strings.HasSuffix(gotAction, "SubmitTestDFE"))
	assert.Contains(t, gotBody, "<fileName>a.zip</fileName>")
	assert.Contains(t, gotBody, "<contentFile>emlw</contentFile>")
}

func TestSOAPClient_Rechazado(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rejectedResponse))
	}))
	defer srv.Close()

	client := infrafiscal.NewSOAPClient(infrafiscal.Endpoints{Prod: srv.URL}, 5*time.Second)
	res, err := client.SubmitZip(context.Background(), []byte("zip"), "a.zip", infrafiscal.AppEnvProd)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, "NIF inválido; LED inactivo", res.Errors)
}

func TestSOAPClient_EntornoSinEndpoint(t *testing.T) {
	client := infrafiscal.NewSOAPClient(infrafiscal.Endpoints{}, time.Second)
	_, err := client.SubmitZip(context.Background(), nil, "a.zip", infrafiscal.AppEnvProd)
	assert.Error(t, err)
	_, err = client.SubmitZip(context.Background(), nil, "a.zip", "staging")
	assert.Error(t, err)
}
