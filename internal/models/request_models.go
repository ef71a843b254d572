package models

// UpdateSubscriptionRequest is the body of PUT /updateSubscriptionStatus.
// Pointers distinguish "not provided" from false.
type UpdateSubscriptionRequest struct {
	Suscription         *bool `json:"suscription,omitempty"`
	IsStartSubscription *bool `json:"isStartSubscription,omitempty"`
}

// UpdateProfileRequest carries the user-editable profile fields.
type UpdateProfileRequest struct {
	FullName *string `json:"fullName,omitempty"`
	Picture  *string `json:"picture,omitempty"`
}

// CreateCourseRequest represents the request body for creating a course.
type CreateCourseRequest struct {
	Title       string      `json:"title" binding:"required"`
	Description string      `json:"description" binding:"required"`
	Instructor  string      `json:"instructor" binding:"required"`
	Duration    int         `json:"duration" binding:"required"`
	Level       CourseLevel `json:"level" binding:"required"`
	Techniques  []string    `json:"techniques,omitempty"`
	Price       *float64    `json:"price,omitempty"`
	IsPremium   bool        `json:"isPremium,omitempty"`
	ImageURL    string      `json:"imageUrl,omitempty"`
	VideoURL    string      `json:"videoUrl,omitempty"`
}

// CreateSessionRequest represents the request body for starting a breathing session.
type CreateSessionRequest struct {
	Title       string             `json:"title" binding:"required"`
	Description string             `json:"description,omitempty"`
	Duration    int                `json:"duration" binding:"required"`
	Technique   BreathingTechnique `json:"technique" binding:"required"`
}

// CreateThemeRequest represents the request body for creating a theme.
type CreateThemeRequest struct {
	Name   string            `json:"name" binding:"required"`
	Colors map[string]string `json:"colors,omitempty"`
}

// UpdateThemeRequest represents the request body for updating a theme.
type UpdateThemeRequest struct {
	Name   *string            `json:"name,omitempty"`
	Colors *map[string]string `json:"colors,omitempty"`
}
