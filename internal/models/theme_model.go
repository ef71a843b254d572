package models

import "time"

// Theme is a named color palette the clients can apply.
type Theme struct {
	ID        string            `json:"id" firestore:"-"`
	Name      string            `json:"name" firestore:"name"`
	Colors    map[string]string `json:"colors" firestore:"colors"`
	CreatedAt time.Time         `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt time.Time         `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
