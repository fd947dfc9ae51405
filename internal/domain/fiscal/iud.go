package fiscal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
)

// ErrInvalidIUDParams parámetros insuficientes o mal formados para el IUD.
var ErrInvalidIUDParams = errors.New("fiscal: parámetros de IUD inválidos")

// Anchos fijos de los campos del IUD (total 45).
const (
	widthCountry    = 2
	widthRepository = 1
	widthNIF        = 9
	widthLED        = 5
	widthSequence   = 9
	maxSequence     = 999_999_999
)

// IUDParams contiene los datos para codificar el IUD en el orden exigido.
type IUDParams struct {
	CountryCode    string    // 2 letras (ej: "CV")
	RepositoryCode string    // 1 dígito
	Date           time.Time // fecha del documento (AA MM DD)
	IssuerNIF      string    // NIF del emisor (9 dígitos)
	LEDCode        string    // código de local/dispositivo (hasta 5 dígitos)
	Type           pkgfiscal.DocumentType
	Sequence       int64  // consecutivo interno (hasta 9 dígitos)
	RandomCode     string // 10 dígitos, generado una sola vez por documento
}

// EncodeIUD concatena los campos de ancho fijo y añade el dígito de control:
//
//	País(2) + Repositorio(1) + AA(2) + MM(2) + DD(2) + NIF(9) + LED(5) + Tipo(2) +
//	Consecutivo(9) + Aleatorio(10) + Control(1)
//
// Es puro: mismos parámetros, mismo IUD. El aleatorio llega ya fijado desde la reserva.
func EncodeIUD(p IUDParams) (string, error) {
	country := strings.ToUpper(strings.TrimSpace(p.CountryCode))
	if len(country) != widthCountry || !isUpper(country) {
		return "", fmt.Errorf("%w: código de país %q", ErrInvalidIUDParams, p.CountryCode)
	}
	repo, err := padDigits(p.RepositoryCode, widthRepository, "repositorio")
	if err != nil {
		return "", err
	}
	if p.Date.IsZero() {
		return "", fmt.Errorf("%w: fecha vacía", ErrInvalidIUDParams)
	}
	nif, err := padDigits(p.IssuerNIF, widthNIF, "NIF emisor")
	if err != nil {
		return "", err
	}
	led, err := padDigits(p.LEDCode, widthLED, "LED")
	if err != nil {
		return "", err
	}
	typeCode, ok := pkgfiscal.IUDTypeCode(p.Type)
	if !ok {
		return "", fmt.Errorf("%w: tipo de documento %q", ErrInvalidIUDParams, p.Type)
	}
	if p.Sequence <= 0 || p.Sequence > maxSequence {
		return "", fmt.Errorf("%w: consecutivo %d fuera de rango", ErrInvalidIUDParams, p.Sequence)
	}
	if len(p.RandomCode) != pkgfiscal.RandomCodeLength || !isDigits(p.RandomCode) {
		return "", fmt.Errorf("%w: componente aleatorio %q", ErrInvalidIUDParams, p.RandomCode)
	}

	base := repo +
		p.Date.Format("060102") +
		nif +
		led +
		typeCode +
		fmt.Sprintf("%0*d", widthSequence, p.Sequence) +
		p.RandomCode

	return country + base + string('0'+CheckDigit(base)), nil
}

// CheckDigit calcula el dígito de control sobre la base (campos 2 a 10):
// posiciones pares (base 0) × 1, impares × 2, restando 9 si el producto supera 9;
// dígito = (suma × 9) mod 10.
func CheckDigit(base string) byte {
	var sum int
	for i := 0; i < len(base); i++ {
		d := int(base[i] - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return byte((sum * 9) % 10)
}

// VerifyIUD comprueba longitud, formato y dígito de control de un IUD.
func VerifyIUD(iud string) bool {
	if len(iud) != pkgfiscal.IUDLength {
		return false
	}
	if !isUpper(iud[:widthCountry]) || !isDigits(iud[widthCountry:]) {
		return false
	}
	base := iud[widthCountry : pkgfiscal.IUDLength-1]
	return iud[pkgfiscal.IUDLength-1] == '0'+CheckDigit(base)
}

// DisplayID identificador visible: "{tipo} {serie}{año}/{consecutivo con al menos 3 dígitos}".
func DisplayID(t pkgfiscal.DocumentType, series string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s %s%d/%03d", t, series, date.Year(), seq)
}

// RandomSource genera el componente aleatorio del IUD.
type RandomSource func() (string, error)

var tenDigits = big.NewInt(10_000_000_000)

// CryptoRandomCode genera 10 dígitos con crypto/rand.
func CryptoRandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, tenDigits)
	if err != nil {
		return "", fmt.Errorf("fiscal: generar componente aleatorio: %w", err)
	}
	return fmt.Sprintf("%010d", n.Int64()), nil
}

// padDigits rellena con ceros a la izquierda; falla si hay caracteres no numéricos o excede el ancho.
func padDigits(s string, width int, field string) (string, error) {
	clean := strings.NewReplacer(" ", "", "-", "", ".", "").Replace(strings.TrimSpace(s))
	if !isDigits(clean) || len(clean) > width {
		return "", fmt.Errorf("%w: %s %q", ErrInvalidIUDParams, field, s)
	}
	return strings.Repeat("0", width-len(clean)) + clean, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// isUpper letras A-Z; el IUD solo admite el país en mayúsculas.
func isUpper(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 'A' || c > 'Z' {
			return false
		}
	}
	return s != ""
}
