// Firma XMLDSig envuelta (RSA-SHA256) del DFE. La firma se añade como último hijo de la raíz
// y su Reference apunta al Id del elemento <Dfe>.

package signer

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	infrafiscal "github.com/jhoicas/Facturacion-api/internal/infrastructure/fiscal"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
)

// DigitalSignatureService implementa pkgfiscal.Signer.
type DigitalSignatureService struct{}

var _ pkgfiscal.Signer = (*DigitalSignatureService)(nil)

// NewDigitalSignatureService crea el servicio.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign calcula el digest C14N del DFE, firma el SignedInfo canónico y añade ds:Signature.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("dfe: XML vacío")
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("dfe: certificado vacío")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("dfe: el certificado debe incluir llave privada RSA")
	}
	x509Cert := cert.Leaf
	if x509Cert == nil {
		parsed, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("dfe: parsear certificado: %w", err)
		}
		x509Cert = parsed
	}

	// 1) Digest del documento sin firma
	canonicalDoc, err := infrafiscal.Canonicalize(xmlBytes)
	if err != nil {
		return nil, fmt.Errorf("dfe: canonicalizar documento: %w", err)
	}
	docDigest := sha256.Sum256(canonicalDoc)

	// 2) SignedInfo canónico firmado con RSA-SHA256
	signedInfo := buildSignedInfo(base64.StdEncoding.EncodeToString(docDigest[:]))
	canonicalSI, err := infrafiscal.Canonicalize([]byte(signedInfo))
	if err != nil {
		return nil, fmt.Errorf("dfe: canonicalizar SignedInfo: %w", err)
	}
	hash := sha256.Sum256(canonicalSI)
	sig, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, hash[:])
	if err != nil {
		return nil, fmt.Errorf("dfe: firmar SignedInfo: %w", err)
	}

	signature := buildSignature(signedInfo,
		base64.StdEncoding.EncodeToString(sig),
		base64.StdEncoding.EncodeToString(x509Cert.Raw))
	return appendSignature(xmlBytes, signature)
}

func buildSignedInfo(docDigestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"></ds:CanonicalizationMethod>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"></ds:SignatureMethod>`)
	sb.WriteString(`<ds:Reference URI="#` + infrafiscal.DFEElementID + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"></ds:Transform>`)
	sb.WriteString(`<ds:Transform Algorithm="` + AlgC14N + `"></ds:Transform></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + docDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference></ds:SignedInfo>`)
	return sb.String()
}

func buildSignature(signedInfo, signatureValueB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(signedInfo)
	sb.WriteString(`<ds:SignatureValue>` + signatureValueB64 + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data></ds:KeyInfo>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

func appendSignature(xmlBytes []byte, signatureXML string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("dfe: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("dfe: documento sin raíz")
	}
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("dfe: parsear Signature: %w", err)
	}
	root.AddChild(sigDoc.Root())
	return doc.WriteToBytes()
}
