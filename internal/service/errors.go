package service

import "errors"

var (
	ErrForbidden      = errors.New("forbidden")
	ErrAlreadyFriends = errors.New("already friends")
	ErrRequestHandled = errors.New("friend request already handled")
)
