// FILE: internal/controller/purchase_controller.go
package controller

import (
	"errors"

	"lingua-exchange-be/internal/dto"
	"lingua-exchange-be/internal/entity"
	"lingua-exchange-be/internal/pkg/logger"
	"lingua-exchange-be/internal/pkg/serverutils"
	"lingua-exchange-be/internal/service"
	"lingua-exchange-be/pkg/iap"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IPurchaseController interface {
	RegisterRoutes(r fiber.Router)
	Verify(ctx *fiber.Ctx) error
	Webhook(ctx *fiber.Ctx) error
	GetStatus(ctx *fiber.Ctx) error
	GetTransactions(ctx *fiber.Ctx) error
}

type purchaseController struct {
	vipService     service.IVipService
	webhookService service.IWebhookService
	logger         logger.ILogger
}

func NewPurchaseController(vipService service.IVipService, webhookService service.IWebhookService, log logger.ILogger) IPurchaseController {
	return &purchaseController{
		vipService:     vipService,
		webhookService: webhookService,
		logger:         log,
	}
}

func (c *purchaseController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/purchases")

	// Store-facing, no auth: stores sign their own payloads.
	h.Post("/:platform/webhook", c.Webhook)

	// Protected Routes
	h.Post("/:platform/verify", serverutils.JwtMiddleware, c.Verify)
	h.Get("/status", serverutils.JwtMiddleware, c.GetStatus)
	h.Get("/transactions", serverutils.JwtMiddleware, c.GetTransactions)
}

func (c *purchaseController) Verify(ctx *fiber.Ctx) error {
	platform := ctx.Params("platform")

	var req dto.VerifyPurchaseRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	userId, err := currentUserId(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "invalid session"))
	}

	res, err := c.vipService.VerifyAndApply(ctx.Context(), userId, platform, &req)
	if err != nil {
		status, message := verifyErrorStatus(err)
		if status >= fiber.StatusInternalServerError {
			c.logger.Error("PurchaseController", "Verification failed", map[string]interface{}{
				"user_id":  userId,
				"platform": platform,
				"error":    err.Error(),
			})
		}
		return ctx.Status(status).JSON(serverutils.ErrorResponse(status, message))
	}
	return ctx.JSON(serverutils.SuccessResponse("Purchase verified", res))
}

// Webhook always acks with 200 so stores do not endlessly redeliver payloads
// we will never be able to parse. Decode failures are logged, state changes
// happen asynchronously.
func (c *purchaseController) Webhook(ctx *fiber.Ctx) error {
	platform := ctx.Params("platform")
	body := ctx.Body()

	var err error
	switch platform {
	case iap.PlatformIOS:
		err = c.webhookService.HandleAppleNotification(ctx.Context(), body)
	case iap.PlatformAndroid:
		err = c.webhookService.HandleGoogleNotification(ctx.Context(), body)
	default:
		c.logger.Warn("PurchaseController", "Webhook for unknown platform", map[string]interface{}{
			"platform": platform,
		})
	}
	if err != nil {
		c.logger.Error("PurchaseController", "Failed to process webhook", map[string]interface{}{
			"platform": platform,
			"error":    err.Error(),
		})
	}

	return ctx.JSON(dto.WebhookAckResponse{Success: true})
}

func (c *purchaseController) GetStatus(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "invalid session"))
	}

	res, err := c.vipService.GetStatus(ctx.Context(), userId)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription status", res))
}

func (c *purchaseController) GetTransactions(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "invalid session"))
	}

	res, err := c.vipService.GetTransactions(ctx.Context(), userId)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Purchase history", res))
}

func currentUserId(ctx *fiber.Ctx) (uuid.UUID, error) {
	userIdStr, _ := ctx.Locals("user_id").(string)
	return uuid.Parse(userIdStr)
}

// verifyErrorStatus maps verification failures onto HTTP codes: problems with
// the proof itself are the client's (400), store/config trouble is ours (5xx).
func verifyErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnsupportedPlatform),
		errors.Is(err, service.ErrUnknownProduct),
		errors.Is(err, entity.ErrPaymentMethodMismatch):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUserNotFound):
		return fiber.StatusNotFound, err.Error()
	}

	switch iap.KindOf(err) {
	case iap.FailureBusiness, iap.FailureVerification:
		return fiber.StatusBadRequest, iap.ReasonOf(err)
	case iap.FailureNotFound:
		return fiber.StatusNotFound, iap.ReasonOf(err)
	case iap.FailureConfiguration:
		return fiber.StatusInternalServerError, "store verification is not configured"
	case iap.FailureTransport:
		return fiber.StatusBadGateway, "store verification is temporarily unavailable"
	}
	return fiber.StatusInternalServerError, err.Error()
}
