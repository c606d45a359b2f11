package handlers

// Common error message constants shared across handlers
const (
	ErrMsgInvalidRequestBody    = "Invalid request body"
	ErrMsgUnauthorized          = "Unauthorized"
	ErrMsgInternal              = "Internal server error"
	ErrMsgInvalidNotificationID = "Invalid notification ID"
)
