package models

import (
	"strings"
	"time"
)

// Role is the access level of a user account.
type Role string

const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleBranch  Role = "branch"
	RolePartner Role = "partner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleBranch, RolePartner:
		return true
	}
	return false
}

// DefaultFullName is used when neither the identity provider nor the email yields a usable name.
const DefaultFullName = "usuario"

// SyntheticUIDPrefix marks Firebase UIDs minted for accounts that originated in the CRM
// before the person ever signed in.
const SyntheticUIDPrefix = "systeme_"

// User represents a user in the system.
// The JSON field names are kept compatible with the existing mobile clients ("_id", "suscription").
type User struct {
	ID                  string    `json:"_id" firestore:"-"` // Firestore document ID
	Email               string    `json:"email" firestore:"email"`
	FullName            string    `json:"fullName" firestore:"fullName"`
	Role                Role      `json:"role" firestore:"role"`
	FirebaseUID         string    `json:"firebaseUid" firestore:"firebaseUid"`
	SecurityToken       string    `json:"-" firestore:"securityToken,omitempty"`
	Suscription         bool      `json:"suscription" firestore:"suscription"`
	IsStartSubscription bool      `json:"isStartSubscription" firestore:"isStartSubscription"`
	Picture             string    `json:"picture,omitempty" firestore:"picture,omitempty"`
	CreatedAt           time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt           time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
	PromotionDays       int       `json:"promotionDays" firestore:"-"` // derived, never stored
}

// HasSyntheticUID reports whether the Firebase UID was minted locally rather than issued by Firebase.
func (u *User) HasSyntheticUID() bool {
	return strings.HasPrefix(u.FirebaseUID, SyntheticUIDPrefix)
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// FillPromotionDays sets PromotionDays to the number of whole days between CreatedAt and now.
func (u *User) FillPromotionDays(now time.Time) {
	u.PromotionDays = PromotionDays(u.CreatedAt, now)
}

// PromotionDays returns the number of whole days elapsed since createdAt.
// A zero createdAt, or one in the future, yields 0.
func PromotionDays(createdAt, now time.Time) int {
	if createdAt.IsZero() || now.Before(createdAt) {
		return 0
	}
	return int(now.Sub(createdAt).Hours() / 24)
}

// NormalizeEmail trims and lowercases an email so it can be used as a join key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailLocalPart returns the portion of the email before '@', or the whole string if there is none.
func EmailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// SplitFullName splits a full name into a first token and the remainder,
// the shape the CRM expects for first_name/last_name.
func SplitFullName(fullName string) (first, last string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
