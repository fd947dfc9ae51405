package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Facturacion-api/internal/application/billing"
	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain"
)

// writeError traduce errores de dominio a respuestas HTTP.
func writeError(c *fiber.Ctx, err error) error {
	var vErr *billing.ValidationFailedError
	if errors.As(err, &vErr) {
		issues := make([]dto.IssueEntry, 0, len(vErr.Issues))
		for _, i := range vErr.Issues {
			issues = append(issues, dto.IssueEntry{Field: i.Field, Message: i.Message})
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Code:    "VALIDATION",
			Message: "el borrador no cumple las reglas fiscales",
			Issues:  issues,
		})
	}

	status, code := fiber.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrForbidden):
		status, code = fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = fiber.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrImmutableDocument):
		status, code = fiber.StatusConflict, "IMMUTABLE_DOCUMENT"
	case errors.Is(err, domain.ErrFinalizeInProgress):
		status, code = fiber.StatusConflict, "FINALIZE_IN_PROGRESS"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code = fiber.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrConflict):
		status, code = fiber.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrSequenceUnavailable):
		status, code = fiber.StatusServiceUnavailable, "SEQUENCE_UNAVAILABLE"
	}
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "error interno"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: msg})
}
