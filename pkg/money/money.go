// Package money implementa aritmética monetaria exacta al céntimo sobre shopspring/decimal.
// Cada operación redondea sus operandos a la unidad mínima (2 decimales) antes de combinarlos,
// de modo que sumas repetidas nunca acumulan deriva.
package money

import "github.com/shopspring/decimal"

// Places número de decimales de la unidad monetaria mínima (céntimo).
const Places = 2

// Zero es el importe cero.
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// Round redondea al céntimo más cercano (mitades alejándose de cero).
func Round(x decimal.Decimal) decimal.Decimal {
	return x.Round(Places)
}

// Add suma a y b, ambos redondeados al céntimo.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return Round(a).Add(Round(b))
}

// Sub resta b de a, ambos redondeados al céntimo.
func Sub(a, b decimal.Decimal) decimal.Decimal {
	return Round(a).Sub(Round(b))
}

// Mul multiplica un importe por un factor y redondea el resultado.
func Mul(amount, factor decimal.Decimal) decimal.Decimal {
	return Round(Round(amount).Mul(factor))
}

// Div divide un importe; la división por cero devuelve cero para no romper agregados.
func Div(amount, divisor decimal.Decimal) decimal.Decimal {
	if divisor.IsZero() {
		return Zero
	}
	return Round(Round(amount).Div(divisor))
}

// Percent calcula amount * rate / 100 redondeado al céntimo (rate en porcentaje, ej. 15).
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate).Div(hundred))
}

// Sum suma una lista de importes céntimo a céntimo.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = Add(result, v)
	}
	return result
}

// IsCent indica si x es múltiplo exacto de la unidad mínima.
func IsCent(x decimal.Decimal) bool {
	return x.Equal(Round(x))
}

// FromFloat crea un importe desde float64 redondeado al céntimo.
func FromFloat(v float64) decimal.Decimal {
	return Round(decimal.NewFromFloat(v))
}
