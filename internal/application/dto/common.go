package dto

// ErrorResponse cuerpo de error HTTP. Issues solo viaja en errores de validación (422).
type ErrorResponse struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Issues  []IssueEntry `json:"issues,omitempty"`
}

// IssueEntry par (campo, mensaje) de una regla fiscal incumplida.
type IssueEntry struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
