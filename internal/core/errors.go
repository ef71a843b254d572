package core

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidEmail         = errors.New("email is required")
	ErrReconciliationFailed = errors.New("failed to resolve or create user")
	ErrInvalidInput         = errors.New("invalid input")
	ErrForbidden            = errors.New("user does not have permission for this action")

	ErrCourseNotFound  = errors.New("course not found")
	ErrAuthRequired    = errors.New("authentication required for premium content")
	ErrPremiumRequired = errors.New("an active subscription is required for premium content")

	ErrSessionNotFound = errors.New("breathing session not found")

	ErrMediaNotFound = errors.New("media item not found")

	ErrThemeNotFound  = errors.New("theme not found")
	ErrThemeNameTaken = errors.New("a theme with that name already exists")

	// ErrContactNotFound is reported by tag operations that need a CRM contact.
	ErrContactNotFound = errors.New("crm contact not found")
)
