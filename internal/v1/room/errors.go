package room

import "errors"

var (
	// ErrRoomNotReady means the current state does not support the operation.
	ErrRoomNotReady = errors.New("room: not ready for this operation")

	// ErrRoomInGame rejects connects once the game has started.
	ErrRoomInGame = errors.New("room: game already started")

	// ErrRoomNoSlots rejects connects when every spawn slot is taken.
	ErrRoomNoSlots = errors.New("room: no free slots")

	// ErrWrongAuthFlow means the first client message was not an auth message.
	ErrWrongAuthFlow = errors.New("room: first message must be auth")

	// ErrTokenInvalid means the auth service rejected the bearer token.
	ErrTokenInvalid = errors.New("room: auth token is not valid")

	// ErrPlayerLeft means the player disconnected before the game started.
	ErrPlayerLeft = errors.New("room: player left before start")
)
