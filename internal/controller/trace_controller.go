package controller

import (
	"ai-conversation-be/internal/pkg/serverutils"
	"ai-conversation-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ITraceController interface {
	RegisterRoutes(r fiber.Router)
	Show(ctx *fiber.Ctx) error
}

type traceController struct {
	traceService service.ITraceService
}

func NewTraceController(traceService service.ITraceService) ITraceController {
	return &traceController{traceService: traceService}
}

func (c *traceController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/trace/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get(":id", c.Show)
}

func (c *traceController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid trace id"))
	}

	res, err := c.traceService.GetTrace(ctx.Context(), id)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	if res == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Trace not found"))
	}

	return ctx.JSON(serverutils.SuccessResponse("Trace details", res))
}
