package controller

import (
	"strconv"

	"ai-conversation-be/internal/dto"
	"ai-conversation-be/internal/pkg/serverutils"
	"ai-conversation-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IConversationController interface {
	RegisterRoutes(r fiber.Router)
	ProcessMessage(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
	GetTraces(ctx *fiber.Ctx) error
	GetStats(ctx *fiber.Ctx) error
}

type conversationController struct {
	conversationService service.IConversationService
	traceService        service.ITraceService
}

func NewConversationController(conversationService service.IConversationService, traceService service.ITraceService) IConversationController {
	return &conversationController{
		conversationService: conversationService,
		traceService:        traceService,
	}
}

func (c *conversationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/conversation/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("message", c.ProcessMessage)
	h.Delete(":id/session", c.ClearSession)
	h.Get(":id/traces", c.GetTraces)
	h.Get(":id/stats", c.GetStats)
}

func (c *conversationController) ProcessMessage(ctx *fiber.Ctx) error {
	var req dto.ProcessMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.conversationService.ProcessMessage(ctx.Context(), &req)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Message processed", res))
}

func (c *conversationController) ClearSession(ctx *fiber.Ctx) error {
	conversationId := ctx.Params("id")
	if conversationId == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Missing conversation id"))
	}

	if err := c.conversationService.ClearSession(ctx.Context(), conversationId); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Session cleared", dto.ClearSessionResponse{
		ConversationId: conversationId,
		Cleared:        true,
	}))
}

func (c *conversationController) GetTraces(ctx *fiber.Ctx) error {
	conversationId := ctx.Params("id")
	limit, _ := strconv.Atoi(ctx.Query("limit", "20"))

	traces, err := c.traceService.GetConversationTraces(ctx.Context(), conversationId, limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Conversation traces", traces))
}

func (c *conversationController) GetStats(ctx *fiber.Ctx) error {
	conversationId := ctx.Params("id")

	stats, err := c.traceService.GetConversationStats(ctx.Context(), conversationId)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Stage statistics", stats))
}
