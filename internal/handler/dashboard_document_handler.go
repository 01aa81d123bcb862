package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quizzy-go-api/internal/service"
	"github.com/noah-isme/quizzy-go-api/internal/utils"
)

// DashboardDocumentHandler serves stored dashboard documents under /files.
type DashboardDocumentHandler struct {
	service service.DashboardDocumentService
	logger  zerolog.Logger
}

// NewDashboardDocumentHandler constructs the handler.
func NewDashboardDocumentHandler(service service.DashboardDocumentService, logger zerolog.Logger) *DashboardDocumentHandler {
	return &DashboardDocumentHandler{
		service: service,
		logger:  logger.With().Str("component", "dashboard_document_handler").Logger(),
	}
}

// Register binds the document routes.
func (h *DashboardDocumentHandler) Register(router fiber.Router) {
	router.Get("/:document", h.get)
}

func (h *DashboardDocumentHandler) get(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Params("document"))
	if name == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "document name required")
	}
	token := c.Query("token")
	ctx := requestContext(c)

	if c.Query("alt") != "media" {
		metadata, err := h.service.Metadata(ctx, name, token)
		if err != nil {
			return h.fail(c, name, err)
		}
		return c.Status(fiber.StatusOK).JSON(metadata)
	}

	content, cacheHit, err := h.service.Get(ctx, name, token)
	if err != nil {
		return h.fail(c, name, err)
	}

	c.Set("X-Cache", cacheStatus(cacheHit))
	c.Set(fiber.HeaderContentType, content.ContentType)
	return c.Status(fiber.StatusOK).Send(content.Payload)
}

func (h *DashboardDocumentHandler) fail(c *fiber.Ctx, name string, err error) error {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidDocumentToken):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Str("document", name).Msg("failed to read document")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to read document")
	}
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
