// Package fiscal implementa el canal de transmisión del DFE (Documento Fiscal Electrónico):
// construcción del XML, huella canónica, empaquetado ZIP y envío SOAP a la plataforma.
package fiscal

import "context"

// Entornos de transmisión.
const (
	AppEnvDev  = "dev"  // no envía: simula aceptación
	AppEnvTest = "test" // plataforma de homologación
	AppEnvProd = "prod" // plataforma de producción
)

// SubmitResult resultado de la entrega a la plataforma fiscal.
type SubmitResult struct {
	TrackID  string // identificador de recepción devuelto por la plataforma
	Accepted bool
	Errors   string // mensajes de rechazo (vacío si se aceptó)
}

// Submitter puerto de salida para la entrega del ZIP con el DFE.
// env debe ser "test" o "prod"; filename es el nombre del ZIP.
type Submitter interface {
	SubmitZip(ctx context.Context, zipBytes []byte, filename, env string) (*SubmitResult, error)
}
