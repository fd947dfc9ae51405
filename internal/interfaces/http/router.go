package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Facturacion-api/pkg/jwt"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Drafts       DraftService
	Finalize     FinalizeService
	CreditNotes  CreditNoteService
	Status       StatusService
	Transmission TransmissionService
	JWTSecret    string
	Log          *logger.Logger
}

// Router registra las rutas de la API. Todas las de documentos requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	h := NewDocumentHandler(deps.Drafts, deps.Finalize, deps.CreditNotes, deps.Status, deps.Transmission, deps.Log)
	anyRole := RequireRole(jwt.RoleAdmin, jwt.RoleBiller, jwt.RoleReadOnly)
	billers := RequireRole(jwt.RoleAdmin, jwt.RoleBiller)

	docs := api.Group("/documents")
	docs.Get("/:id", anyRole, h.GetByID)
	docs.Post("/", billers, h.Create)
	docs.Put("/:id", billers, h.Update)
	docs.Post("/:id/finalize", billers, h.Finalize)
	docs.Post("/:id/credit-notes", billers, h.CreateCreditNote)
	docs.Post("/:id/payments", billers, h.RegisterPayment)
	docs.Post("/:id/void", RequireRole(jwt.RoleAdmin), h.Void)
	docs.Post("/:id/transmission/retry", billers, h.RetryTransmission)
}
