package fiscal

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// CompressXMLToZip empaqueta el DFE en un ZIP en memoria con un único archivo.
func CompressXMLToZip(xmlBytes []byte, xmlFilename string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	fw, err := zw.Create(xmlFilename)
	if err != nil {
		return nil, fmt.Errorf("zip: crear entrada %s: %w", xmlFilename, err)
	}
	if _, err := fw.Write(xmlBytes); err != nil {
		return nil, fmt.Errorf("zip: escribir XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: cerrar archivo: %w", err)
	}
	return buf.Bytes(), nil
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

// DFEFilenames nombres del XML interno y del ZIP: {NIF emisor}_{IUD}.
func DFEFilenames(company *entity.Company, doc *entity.Document) (xmlName, zipName string) {
	base := nonDigit.ReplaceAllString(company.NIF, "") + "_" + doc.IUD
	return base + ".xml", base + ".zip"
}
