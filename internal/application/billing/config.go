package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config parámetros del régimen fiscal usados por los casos de uso.
type Config struct {
	CountryCode     string          // "CV"
	DefaultSeries   string          // serie usada al reservar el consecutivo (ej: "A")
	WithholdingRate decimal.Decimal // fracción (0.04 = 4 %)
}

// TransmissionConfig modo de operación de la transmisión fiscal.
//   - "dev"  → construye el XML y su huella, NO envía. Estado final: TRANSMITTED (simulado).
//   - "test" / "prod" → envía al endpoint configurado en el Submitter.
type TransmissionConfig struct {
	Env     string
	Timeout time.Duration
}
