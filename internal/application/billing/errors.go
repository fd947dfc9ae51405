package billing

import (
	"fmt"
	"strings"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/fiscal"
)

// ValidationFailedError el borrador incumple reglas fiscales; no se tocó el consecutivo.
type ValidationFailedError struct {
	Issues []fiscal.ValidationIssue
}

func (e *ValidationFailedError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		parts = append(parts, i.String())
	}
	return fmt.Sprintf("validación fiscal: %s", strings.Join(parts, "; "))
}

// Unwrap permite errors.Is(err, domain.ErrInvalidInput).
func (e *ValidationFailedError) Unwrap() error {
	return domain.ErrInvalidInput
}
