package models

// FavoriteKind names the media catalog a favorite belongs to.
type FavoriteKind string

const (
	FavoriteMusic FavoriteKind = "music"
	FavoriteVideo FavoriteKind = "video"
)

// FavoriteResult is the outcome of toggling a favorite.
// Favorited is false when the call removed an existing favorite.
type FavoriteResult struct {
	ItemID    string       `json:"_id"`
	Kind      FavoriteKind `json:"kind"`
	Favorited bool         `json:"favorited"`
}
