package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrForbidden           = errors.New("acceso denegado")
	ErrConflict            = errors.New("conflicto con el estado actual")
	ErrImmutableDocument   = errors.New("el documento ya fue emitido y no admite cambios")
	ErrFinalizeInProgress  = errors.New("el documento tiene una emisión en curso")
	ErrInvalidTransition   = errors.New("transición de estado no permitida")
	ErrSequenceUnavailable = errors.New("no se pudo asignar el consecutivo de la serie")
)
