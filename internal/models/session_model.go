package models

import "time"

// BreathingTechnique identifies the exercise practiced in a session.
type BreathingTechnique string

const (
	TechniqueFourSevenEight   BreathingTechnique = "4-7-8"
	TechniqueBox              BreathingTechnique = "box-breathing"
	TechniqueTriangle         BreathingTechnique = "triangle-breathing"
	TechniqueBelly            BreathingTechnique = "belly-breathing"
	TechniqueAlternateNostril BreathingTechnique = "alternate-nostril"
)

// Valid reports whether t is a known technique.
func (t BreathingTechnique) Valid() bool {
	switch t {
	case TechniqueFourSevenEight, TechniqueBox, TechniqueTriangle, TechniqueBelly, TechniqueAlternateNostril:
		return true
	}
	return false
}

// BreathingSession is a practice session owned by a single user.
type BreathingSession struct {
	ID          string             `json:"id" firestore:"-"`
	UserID      string             `json:"userId" firestore:"userId"`
	Title       string             `json:"title" firestore:"title"`
	Description string             `json:"description,omitempty" firestore:"description,omitempty"`
	Duration    int                `json:"duration" firestore:"duration"` // minutes
	Technique   BreathingTechnique `json:"technique" firestore:"technique"`
	Completed   bool               `json:"completed" firestore:"completed"`
	CompletedAt *time.Time         `json:"completedAt,omitempty" firestore:"completedAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt   time.Time          `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
