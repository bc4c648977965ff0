package model

import "errors"

// Common errors used across the application
var (
	// Token errors
	ErrTokenNotFound           = errors.New("token not found")
	ErrTokenExpired            = errors.New("token expired")
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user is disabled")

	// Game errors
	ErrGameNotFound       = errors.New("game not found")
	ErrGameFull           = errors.New("game is full")
	ErrAlreadyStarted     = errors.New("game has already started")
	ErrLateJoinNotAllowed = errors.New("game does not allow late joining")
	ErrNotEnoughPlayers   = errors.New("not enough players to start game")
	ErrNotMaster          = errors.New("player is not the game master")
	ErrInvalidOption      = errors.New("invalid game option")
	ErrProvisioningFailed = errors.New("game server provisioning failed")
	ErrControlCallFailed  = errors.New("broker control call failed")

	// Player errors
	ErrPlayerNotFound = errors.New("player not found")
	ErrMasterPlayer   = errors.New("the game master cannot leave, delete the game instead")
)
