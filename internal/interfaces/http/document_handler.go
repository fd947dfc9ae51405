package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

// Puertos que el handler necesita de la capa de aplicación.
type (
	DraftService interface {
		CreateOrUpdateDraft(ctx context.Context, companyID, userID, id string, in dto.DraftRequest) (*dto.DocumentResponse, error)
		GetDocument(ctx context.Context, companyID, id string) (*dto.DocumentResponse, error)
	}
	FinalizeService interface {
		Finalize(ctx context.Context, companyID, id string) (*dto.DocumentResponse, error)
	}
	CreditNoteService interface {
		CreateCreditNote(ctx context.Context, companyID, userID, targetID string, in dto.CreditNoteRequest) (*dto.DocumentResponse, error)
	}
	StatusService interface {
		RegisterPayment(ctx context.Context, companyID, id string) (*dto.DocumentResponse, error)
		Void(ctx context.Context, companyID, id, reason string) (*dto.DocumentResponse, error)
	}
	TransmissionService interface {
		Retry(ctx context.Context, companyID, id string) (*dto.TransmissionStatusDTO, error)
	}
)

// DocumentHandler maneja las peticiones HTTP de documentos fiscales (protegido).
type DocumentHandler struct {
	drafts       DraftService
	finalize     FinalizeService
	notes        CreditNoteService
	status       StatusService
	transmission TransmissionService
	log          *logger.Logger
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(
	drafts DraftService,
	finalize FinalizeService,
	notes CreditNoteService,
	status StatusService,
	transmission TransmissionService,
	log *logger.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		drafts:       drafts,
		finalize:     finalize,
		notes:        notes,
		status:       status,
		transmission: transmission,
		log:          log,
	}
}

// Create crea un borrador.
// POST /api/documents
func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	companyID, userID, ok := h.identity(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.DraftRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	doc, err := h.drafts.CreateOrUpdateDraft(c.UserContext(), companyID, userID, "", in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// Update reemplaza el contenido de un borrador.
// PUT /api/documents/:id
func (h *DocumentHandler) Update(c *fiber.Ctx) error {
	companyID, userID, ok := h.identity(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.DraftRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	doc, err := h.drafts.CreateOrUpdateDraft(c.UserContext(), companyID, userID, c.Params("id"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(doc)
}

// GetByID devuelve un documento de la empresa.
// GET /api/documents/:id
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	companyID, _, ok := h.identity(c)
	if !ok {
		return unauthorized(c)
	}
	doc, err := h.drafts.GetDocument(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(doc)
}

// Finalize emite el borrador; 422 con la lista de incumplimientos si no pasa la validación.
// POST /api/documents/:id/finalize
func (h *DocumentHandler) Finalize(c *fiber.Ctx) error {
	companyID, _, ok := h.identity(c)
	if !ok {
		return unauthorized(c)
	}
	doc, err := h.finalize.Finalize(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(doc)
}

// CreateCreditNote crea el borrador de nota de crédito contra el documento.
// POST /api/documents/:id/credit-notes
func (h *DocumentHandler) CreateCreditNote(c *fiber.Ctx) error {
	companyID, userID, ok := h.identity(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.CreditNoteRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	note, err := h.notes.CreateCreditNote(c.UserContext(), companyID, userID, c.Params("id"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(note)
}

// RegisterPayment marca como pagada una factura emitida.
// POST /api/documents/:id/payments
func (h *DocumentHandler) RegisterPayment(c *fiber.Ctx) error {
	companyID, _, ok := h.identity(c)
	if !ok {
		return unauthorized(c)
	}
	doc, err := h.status.RegisterPayment(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(doc)
}

// Void anula un documento emitido.
// POST /api/documents/:id/void
func (h *DocumentHandler) Void(c *fiber.Ctx) error {
	companyID, _, ok := h.identity(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.VoidRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	doc, err := h.status.Void(c.UserContext(), companyID, c.Params("id"), in.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(doc)
}

// RetryTransmission reencola la transmisión fiscal; responde 202 sin esperar el envío.
// POST /api/documents/:id/transmission/retry
func (h *DocumentHandler) RetryTransmission(c *fiber.Ctx) error {
	companyID, _, ok := h.identity(c)
	if !ok {
		return unauthorized(c)
	}
	st, err := h.transmission.Retry(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(st)
}

func (h *DocumentHandler) identity(c *fiber.Ctx) (companyID, userID string, ok bool) {
	companyID, userID = GetCompanyID(c), GetUserID(c)
	return companyID, userID, companyID != "" && userID != ""
}

func (h *DocumentHandler) fail(c *fiber.Ctx, err error) error {
	if werr := writeError(c, err); werr != nil {
		return werr
	}
	if c.Response().StatusCode() >= fiber.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("error en petición de documentos")
	}
	return nil
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
