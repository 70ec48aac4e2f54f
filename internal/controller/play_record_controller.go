package controller

import (
	"mediahub-be/internal/dto"
	"mediahub-be/internal/pkg/serverutils"
	"mediahub-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IPlayRecordController interface {
	RegisterRoutes(r fiber.Router, authMiddleware fiber.Handler)
	GetAll(ctx *fiber.Ctx) error
	Save(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type playRecordController struct {
	service service.IPlayRecordService
}

func NewPlayRecordController(service service.IPlayRecordService) IPlayRecordController {
	return &playRecordController{service: service}
}

func (c *playRecordController) RegisterRoutes(r fiber.Router, authMiddleware fiber.Handler) {
	h := r.Group("/playrecords")
	h.Use(authMiddleware)
	h.Get("/", c.GetAll)
	h.Post("/", c.Save)
	h.Delete("/:source/:id", c.Delete)
}

func (c *playRecordController) GetAll(ctx *fiber.Ctx) error {
	res, err := c.service.GetAll(ctx.UserContext(), serverutils.CurrentUser(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Play records", res))
}

func (c *playRecordController) Save(ctx *fiber.Ctx) error {
	var req dto.SavePlayRecordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Save(ctx.UserContext(), serverutils.CurrentUser(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Play record saved", res))
}

func (c *playRecordController) Delete(ctx *fiber.Ctx) error {
	if err := c.service.Delete(ctx.UserContext(), serverutils.CurrentUser(ctx), ctx.Params("source"), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Play record deleted", nil))
}
