package controller

import (
	"context"

	"mediahub-be/internal/model"
	"mediahub-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

// StatsReader is implemented by stats.Aggregator.
type StatsReader interface {
	GetPlayStats(ctx context.Context) (*model.PlayStatsResult, error)
	GetUserPlayStat(ctx context.Context, user string) (*model.UserPlayStat, error)
}

type IStatsController interface {
	RegisterRoutes(r fiber.Router, authMiddleware fiber.Handler)
	GetSummary(ctx *fiber.Ctx) error
	GetMine(ctx *fiber.Ctx) error
}

type statsController struct {
	stats StatsReader
}

func NewStatsController(stats StatsReader) IStatsController {
	return &statsController{stats: stats}
}

func (c *statsController) RegisterRoutes(r fiber.Router, authMiddleware fiber.Handler) {
	h := r.Group("/stats")
	h.Use(authMiddleware)
	h.Get("/", c.GetSummary)
	h.Get("/me", c.GetMine)
}

func (c *statsController) GetSummary(ctx *fiber.Ctx) error {
	res, err := c.stats.GetPlayStats(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Play statistics", res))
}

func (c *statsController) GetMine(ctx *fiber.Ctx) error {
	res, err := c.stats.GetUserPlayStat(ctx.UserContext(), serverutils.CurrentUser(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("User play statistics", res))
}
