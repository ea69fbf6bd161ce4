package service

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNoActiveRound   = errors.New("no active round")
	ErrRoundActive     = errors.New("a round is already active")
	ErrNotOwner        = errors.New("only the room owner can do this")
	ErrOwnerCannotVote = errors.New("the room owner does not take part in measurement")
	ErrNotParticipant  = errors.New("user is not a room participant")
	ErrWrongPhase      = errors.New("action not accepted in the current phase")
	ErrRoomBusy        = errors.New("room is processing a phase transition")
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrUnknownAction   = errors.New("unknown action")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrBridge          = errors.New("bridge failure")
	ErrPersistence     = errors.New("persistence failure")
)
