package models

import "time"

// CourseLevel is the difficulty tier of a course.
type CourseLevel string

const (
	CourseLevelBeginner     CourseLevel = "beginner"
	CourseLevelIntermediate CourseLevel = "intermediate"
	CourseLevelAdvanced     CourseLevel = "advanced"
)

// Valid reports whether l is a known course level.
func (l CourseLevel) Valid() bool {
	switch l {
	case CourseLevelBeginner, CourseLevelIntermediate, CourseLevelAdvanced:
		return true
	}
	return false
}

// Course is a catalog entry. Premium courses are only visible to subscribers.
type Course struct {
	ID          string      `json:"id" firestore:"-"`
	Title       string      `json:"title" firestore:"title"`
	Description string      `json:"description" firestore:"description"`
	Instructor  string      `json:"instructor" firestore:"instructor"`
	Duration    int         `json:"duration" firestore:"duration"` // minutes
	Level       CourseLevel `json:"level" firestore:"level"`
	Techniques  []string    `json:"techniques" firestore:"techniques"`
	Price       *float64    `json:"price,omitempty" firestore:"price,omitempty"`
	IsPremium   bool        `json:"isPremium" firestore:"isPremium"`
	ImageURL    string      `json:"imageUrl,omitempty" firestore:"imageUrl,omitempty"`
	VideoURL    string      `json:"videoUrl,omitempty" firestore:"videoUrl,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt   time.Time   `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
