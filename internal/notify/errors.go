package notify

import "errors"

// Sentinel errors for the notification engine.
var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTriggerNotFound  = errors.New("trigger not found")
	ErrNotAuthorized    = errors.New("caller is not an administrator")
	ErrRecipientEmpty   = errors.New("recipient is empty")
)
