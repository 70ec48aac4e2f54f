package dto

import "mediahub-be/internal/model"

type CreateConversationRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants" validate:"required,min=1,dive,required"`
}

type UpdateConversationRequest struct {
	Name         *string  `json:"name" validate:"omitempty,max=100"`
	Participants []string `json:"participants" validate:"omitempty,min=2,dive,required"`
}

type SendMessageRequest struct {
	Content     string `json:"content" validate:"required,max=4000"`
	MessageType string `json:"message_type" validate:"omitempty,oneof=text image file"`
}

type MessagesQuery struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=200"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

type SendFriendRequestRequest struct {
	ToUser  string `json:"to_user" validate:"required"`
	Message string `json:"message" validate:"max=200"`
}

type RespondFriendRequestRequest struct {
	Accept bool `json:"accept"`
}

type UserSearchQuery struct {
	Query string `query:"q" validate:"required,max=64"`
}

type ConversationResponse struct {
	model.Conversation
	OnlineParticipants []string `json:"online_participants"`
}
