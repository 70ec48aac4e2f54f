package controller

import (
	"mediahub-be/internal/dto"
	"mediahub-be/internal/pkg/serverutils"
	"mediahub-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, authMiddleware fiber.Handler)
	GetConversations(ctx *fiber.Ctx) error
	CreateConversation(ctx *fiber.Ctx) error
	GetConversation(ctx *fiber.Ctx) error
	UpdateConversation(ctx *fiber.Ctx) error
	DeleteConversation(ctx *fiber.Ctx) error
	GetMessages(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	MarkAsRead(ctx *fiber.Ctx) error
	GetFriends(ctx *fiber.Ctx) error
	RemoveFriend(ctx *fiber.Ctx) error
	GetFriendRequests(ctx *fiber.Ctx) error
	SendFriendRequest(ctx *fiber.Ctx) error
	RespondFriendRequest(ctx *fiber.Ctx) error
	SearchUsers(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router, authMiddleware fiber.Handler) {
	h := r.Group("/chat")
	h.Use(authMiddleware)

	h.Get("/conversations", c.GetConversations)
	h.Post("/conversations", c.CreateConversation)
	h.Get("/conversations/:id", c.GetConversation)
	h.Patch("/conversations/:id", c.UpdateConversation)
	h.Delete("/conversations/:id", c.DeleteConversation)
	h.Get("/conversations/:id/messages", c.GetMessages)
	h.Post("/conversations/:id/messages", c.SendMessage)
	h.Post("/conversations/:id/messages/:messageId/read", c.MarkAsRead)

	h.Get("/friends", c.GetFriends)
	h.Delete("/friends/:id", c.RemoveFriend)
	h.Get("/friend-requests", c.GetFriendRequests)
	h.Post("/friend-requests", c.SendFriendRequest)
	h.Post("/friend-requests/:id/respond", c.RespondFriendRequest)

	h.Get("/users/search", c.SearchUsers)
}

func (c *chatController) GetConversations(ctx *fiber.Ctx) error {
	res, err := c.service.GetConversations(ctx.UserContext(), serverutils.CurrentUser(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Conversations", res))
}

func (c *chatController) CreateConversation(ctx *fiber.Ctx) error {
	var req dto.CreateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateConversation(ctx.UserContext(), serverutils.CurrentUser(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Conversation created", res))
}

func (c *chatController) GetConversation(ctx *fiber.Ctx) error {
	res, err := c.service.GetConversation(ctx.UserContext(), serverutils.CurrentUser(ctx), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Conversation", res))
}

func (c *chatController) UpdateConversation(ctx *fiber.Ctx) error {
	var req dto.UpdateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.UpdateConversation(ctx.UserContext(), serverutils.CurrentUser(ctx), ctx.Params("id"), &req); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Conversation updated", nil))
}

func (c *chatController) DeleteConversation(ctx *fiber.Ctx) error {
	if err := c.service.DeleteConversation(ctx.UserContext(), serverutils.CurrentUser(ctx), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Conversation deleted", nil))
}

func (c *chatController) GetMessages(ctx *fiber.Ctx) error {
	var q dto.MessagesQuery
	if err := ctx.QueryParser(&q); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(q); err != nil {
		return err
	}

	res, err := c.service.GetMessages(ctx.UserContext(), serverutils.CurrentUser(ctx), ctx.Params("id"), &q)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Messages", res))
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.UserContext(), serverutils.CurrentUser(ctx), ctx.Params("id"), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Message sent", res))
}

func (c *chatController) MarkAsRead(ctx *fiber.Ctx) error {
	err := c.service.MarkAsRead(ctx.UserContext(), serverutils.CurrentUser(ctx), ctx.Params("id"), ctx.Params("messageId"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Message marked as read", nil))
}

func (c *chatController) GetFriends(ctx *fiber.Ctx) error {
	res, err := c.service.GetFriends(ctx.UserContext(), serverutils.CurrentUser(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Friends", res))
}

func (c *chatController) RemoveFriend(ctx *fiber.Ctx) error {
	if err := c.service.RemoveFriend(ctx.UserContext(), serverutils.CurrentUser(ctx), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Friend removed", nil))
}

func (c *chatController) GetFriendRequests(ctx *fiber.Ctx) error {
	res, err := c.service.GetFriendRequests(ctx.UserContext(), serverutils.CurrentUser(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Friend requests", res))
}

func (c *chatController) SendFriendRequest(ctx *fiber.Ctx) error {
	var req dto.SendFriendRequestRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendFriendRequest(ctx.UserContext(), serverutils.CurrentUser(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Friend request sent", res))
}

func (c *chatController) RespondFriendRequest(ctx *fiber.Ctx) error {
	var req dto.RespondFriendRequestRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.service.RespondFriendRequest(ctx.UserContext(), serverutils.CurrentUser(ctx), ctx.Params("id"), req.Accept)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Friend request updated", res))
}

func (c *chatController) SearchUsers(ctx *fiber.Ctx) error {
	var q dto.UserSearchQuery
	if err := ctx.QueryParser(&q); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(q); err != nil {
		return err
	}

	res, err := c.service.SearchUsers(ctx.UserContext(), serverutils.CurrentUser(ctx), q.Query)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Users", res))
}
