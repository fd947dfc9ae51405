package fiscal

import (
	"fmt"
	"unicode"
)

// nifWeights pesos del dígito de control del NIF (módulo 11), aplicados a los 8 primeros dígitos
// de izquierda a derecha. Tabla provisional: pendiente de contrastar con NIF reales publicados
// por la administración tributaria.
var nifWeights = [8]int{9, 8, 7, 6, 5, 4, 3, 2}

// NIFLength longitud del NIF en dígitos (incluye el dígito de control).
const NIFLength = 9

// Mod11Validator valida NIF con el algoritmo módulo 11 por pesos.
type Mod11Validator struct{}

// Valid implementa la interfaz de validación de identificador fiscal.
func (Mod11Validator) Valid(taxID string) bool {
	return ValidateNIF(taxID) == nil
}

// ValidateNIF valida que el NIF (con o sin espacios/guiones) tenga 9 dígitos y dígito de control correcto.
func ValidateNIF(taxID string) error {
	digits := ExtractDigits(taxID)
	if len(digits) != NIFLength {
		return fmt.Errorf("fiscal: NIF debe tener %d dígitos, se encontraron %d", NIFLength, len(digits))
	}
	expected, err := ComputeNIFCheckDigit(string(digits[:NIFLength-1]))
	if err != nil {
		return err
	}
	if digits[NIFLength-1] != expected {
		return fmt.Errorf("fiscal: dígito de control del NIF inválido: esperado %c, recibido %c", expected, digits[NIFLength-1])
	}
	return nil
}

// ComputeNIFCheckDigit calcula el dígito de control para los 8 primeros dígitos del NIF.
func ComputeNIFCheckDigit(base string) (byte, error) {
	digits := ExtractDigits(base)
	if len(digits) < len(nifWeights) {
		return 0, fmt.Errorf("fiscal: se requieren %d dígitos para calcular el dígito de control, se encontraron %d", len(nifWeights), len(digits))
	}
	var sum int
	for i, w := range nifWeights {
		sum += int(digits[i]-'0') * w
	}
	check := 11 - sum%11
	if check >= 10 {
		check = 0
	}
	return byte('0' + check), nil
}

// ExtractDigits deja solo los dígitos 0-9.
func ExtractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) && r < 128 {
			out = append(out, byte(r))
		}
	}
	return out
}
