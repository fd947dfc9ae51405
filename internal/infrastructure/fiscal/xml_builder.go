package fiscal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
	"github.com/jhoicas/Facturacion-api/pkg/money"
)

// Namespace y versión del esquema DFE.
const (
	NsDFE          = "urn:cv:efatura:dfe:v1.0"
	DFEVersion     = "1.0"
	DFEElementID   = "dfe-id" // destino de la Reference de la firma
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	amountDecimals = 2
)

// XMLBuilderService construye el XML del DFE a partir de un documento emitido (sin firma).
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el DFE. Los textos libres se normalizan a NFC para que la huella no dependa
// de cómo el cliente compuso los acentos.
func (s *XMLBuilderService) Build(doc *entity.Document, company *entity.Company) ([]byte, error) {
	if doc == nil || company == nil {
		return nil, fmt.Errorf("dfe: faltan documento o emisor")
	}
	if doc.IsDraft() || doc.IUD == "" {
		return nil, fmt.Errorf("dfe: el documento %s no está emitido", doc.ID)
	}
	typeCode, ok := pkgfiscal.IUDTypeCode(doc.Type)
	if !ok {
		return nil, fmt.Errorf("dfe: tipo de documento %q sin código", doc.Type)
	}

	x := etree.NewDocument()
	root := x.CreateElement("Dfe")
	root.CreateAttr("xmlns", NsDFE)
	root.CreateAttr("Id", DFEElementID)
	root.CreateAttr("Version", DFEVersion)

	text(root, "IUD", doc.IUD)
	text(root, "DocumentTypeCode", typeCode)
	text(root, "DocumentType", string(doc.Type))
	text(root, "DocumentNumber", doc.DisplayID)
	text(root, "Series", doc.Series)
	text(root, "Sequence", strconv.FormatInt(doc.Sequence, 10))
	text(root, "IssueDate", doc.Date.Format(dateLayout))
	if doc.IssuedAt != nil {
		text(root, "IssueTime", doc.IssuedAt.UTC().Format(timeLayout))
	}
	if doc.DueDate != nil {
		text(root, "DueDate", doc.DueDate.Format(dateLayout))
	}

	emitter := root.CreateElement("Emitter")
	text(emitter, "NIF", company.NIF)
	text(emitter, "Name", company.Name)
	text(emitter, "Address", company.Address)
	text(emitter, "LED", company.LEDCode)

	receiver := root.CreateElement("Receiver")
	if doc.Client.TaxID != "" {
		text(receiver, "NIF", doc.Client.TaxID)
	}
	text(receiver, "Name", doc.Client.Name)
	if doc.Client.Address != "" {
		text(receiver, "Address", doc.Client.Address)
	}

	lines := root.CreateElement("Lines")
	lines.CreateAttr("Count", strconv.Itoa(len(doc.Items)))
	for i, item := range doc.Items {
		line := lines.CreateElement("Line")
		line.CreateAttr("Id", strconv.Itoa(i+1))
		text(line, "Description", item.Description)
		if item.Code != "" {
			text(line, "Code", item.Code)
		}
		text(line, "Quantity", item.Quantity.String())
		text(line, "UnitPrice", amount(item.UnitPrice))
		text(line, "TaxRate", item.TaxRate.String())
		text(line, "LineExtensionAmount", amount(money.Round(item.Quantity.Mul(item.UnitPrice))))
		text(line, "TaxAmount", amount(money.Percent(item.Quantity.Mul(item.UnitPrice), item.TaxRate)))
	}

	totals := root.CreateElement("Totals")
	text(totals, "Subtotal", amount(doc.Subtotal))
	text(totals, "Tax", amount(doc.Tax))
	text(totals, "Withholding", amount(doc.Withholding))
	text(totals, "Total", amount(doc.Total))

	if doc.Type == pkgfiscal.TypeCreditNote {
		ref := root.CreateElement("Reference")
		text(ref, "IUD", doc.ReferenceIUD)
		text(ref, "Reason", doc.Reason)
	}
	if strings.TrimSpace(doc.Notes) != "" {
		text(root, "Notes", doc.Notes)
	}

	x.Indent(2)
	return x.WriteToBytes()
}

func text(parent *etree.Element, tag, value string) {
	parent.CreateElement(tag).SetText(norm.NFC.String(strings.TrimSpace(value)))
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(amountDecimals)
}
