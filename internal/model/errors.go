package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Room errors
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrRoomNotJoinable  = errors.New("room is not joinable")
	ErrRoomNotWaiting   = errors.New("room is not in the waiting state")
	ErrAlreadyMember    = errors.New("user is already in the room")
	ErrNotInRoom        = errors.New("user is not in the room")
	ErrNotHost          = errors.New("user is not the host")
	ErrNotEnoughPlayers = errors.New("not enough players to start")

	// Code allocation errors
	ErrCodeTaken     = errors.New("room code already taken")
	ErrCodeExhausted = errors.New("could not allocate a unique room code")
)
