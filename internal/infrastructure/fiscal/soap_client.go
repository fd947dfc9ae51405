package fiscal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
	soapNSService  = "urn:cv:efatura:ws:v1.0"
	soapActionBase = "urn:cv:efatura:ws:v1.0/"

	maxResponseBytes = 1 << 20
)

// Endpoints URLs de la plataforma por entorno.
type Endpoints struct {
	Test string
	Prod string
}

// SOAPClient implementa Submitter sobre el servicio SOAP de recepción de DFE.
type SOAPClient struct {
	httpClient *http.Client
	endpoints  Endpoints
}

var _ Submitter = (*SOAPClient)(nil)

// NewSOAPClient construye el cliente. timeout es el límite de red de cada llamada.
func NewSOAPClient(endpoints Endpoints, timeout time.Duration) *SOAPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SOAPClient{
		httpClient: &http.Client{Timeout: timeout},
		endpoints:  endpoints,
	}
}

type soapEnvelope struct {
	XMLName xml.Name   `xml:"s:Envelope"`
	XmlnsS  string     `xml:"xmlns:s,attr"`
	Header  soapHeader `xml:"s:Header"`
	Body    soapBody   `xml:"s:Body"`
}

type soapHeader struct{}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "s:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// submitDFEBody cuerpo de SubmitDFE (producción) y SubmitTestDFE (homologación).
type submitDFEBody struct {
	XMLName     xml.Name
	Xmlns       string `xml:"xmlns,attr"`
	FileName    string `xml:"fileName"`
	ContentFile string `xml:"contentFile"` // ZIP en Base64
}

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Submit     *submitDFEResponse `xml:"SubmitDFEResponse"`
	SubmitTest *submitDFEResponse `xml:"SubmitTestDFEResponse"`
	Fault      *soapFault         `xml:"Fault"`
}

type submitDFEResponse struct {
	Result submitDFEResult `xml:"SubmitDFEResult"`
}

type submitDFEResult struct {
	HasErrors        bool     `xml:"HasErrors"`
	ErrorMessageList []string `xml:"ErrorMessageList>string"`
	ReceiptKey       string   `xml:"ReceiptKey"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// SubmitZip envía el ZIP a la operación SOAP del entorno indicado.
func (c *SOAPClient) SubmitZip(ctx context.Context, zipBytes []byte, filename, env string) (*SubmitResult, error) {
	url, operation, err := c.route(env)
	if err != nil {
		return nil, err
	}

	envelope := soapEnvelope{
		XmlnsS: soapNS,
		Body: soapBody{Content: &submitDFEBody{
			XMLName:     xml.Name{Local: operation},
			Xmlns:       soapNSService,
			FileName:    filename,
			ContentFile: base64.StdEncoding.EncodeToString(zipBytes),
		}},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapActionBase+operation)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("soap: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("soap: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("soap: leer respuesta: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError && !bytes.Contains(raw, []byte("Fault")) {
		return nil, fmt.Errorf("soap: la plataforma respondió %d", resp.StatusCode)
	}
	return parseResponse(raw), nil
}

func (c *SOAPClient) route(env string) (url, operation string, err error) {
	switch env {
	case AppEnvProd:
		url, operation = c.endpoints.Prod, "SubmitDFE"
	case AppEnvTest:
		url, operation = c.endpoints.Test, "SubmitTestDFE"
	default:
		return "", "", fmt.Errorf("soap: entorno desconocido %q (usar 'test' o 'prod')", env)
	}
	if url == "" {
		return "", "", fmt.Errorf("soap: endpoint no configurado para %q", env)
	}
	return url, operation, nil
}

// parseResponse desempaqueta la respuesta. Un cuerpo ilegible o un Fault cuentan como rechazo,
// no como error de red: el documento queda FAILED con el detalle para reintentar.
func parseResponse(raw []byte) *SubmitResult {
	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(raw, &envResp); err != nil {
		return &SubmitResult{Errors: "no se pudo parsear respuesta SOAP: " + string(raw)}
	}
	if f := envResp.Body.Fault; f != nil {
		return &SubmitResult{Errors: fmt.Sprintf("SOAP Fault [%s]: %s", f.FaultCode, f.FaultString)}
	}

	resp := envResp.Body.Submit
	if resp == nil {
		resp = envResp.Body.SubmitTest
	}
	if resp == nil {
		return &SubmitResult{Errors: "respuesta SOAP vacía o inesperada: " + string(raw)}
	}
	return &SubmitResult{
		TrackID:  resp.Result.ReceiptKey,
		Accepted: !resp.Result.HasErrors,
		Errors:   strings.Join(resp.Result.ErrorMessageList, "; "),
	}
}
