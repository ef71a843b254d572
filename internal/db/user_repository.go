package db

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fawzii0x3/breath-school-api/internal/models"
)

const (
	usersCollection      = "users"
	userEmailsCollection = "user_emails"
	userUIDsCollection   = "user_uids"
)

// userIndex is the body of a uniqueness index document pointing back at its user.
type userIndex struct {
	UserID string `firestore:"userId"`
}

// firestoreUserRepository implements the UserRepository interface using Firestore.
// Email and Firebase UID uniqueness is enforced with index documents written in the
// same transaction as the user document, so a concurrent second writer fails on commit.
// Synthetic UIDs are not indexed; they are placeholders until the person signs in.
type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new instance of firestoreUserRepository.
func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	return &firestoreUserRepository{client: client}
}

func indexKey(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

func (r *firestoreUserRepository) emailRef(email string) *firestore.DocumentRef {
	return r.client.Collection(userEmailsCollection).Doc(indexKey(email))
}

func (r *firestoreUserRepository) uidRef(uid string) *firestore.DocumentRef {
	return r.client.Collection(userUIDsCollection).Doc(indexKey(uid))
}

// Create adds a new user document and its index documents in one transaction.
// On success user.ID holds the generated document ID.
func (r *firestoreUserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	if user.Email == "" {
		return errors.New("user email cannot be empty for Create operation")
	}

	ref := r.client.Collection(usersCollection).NewDoc()
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(r.emailRef(user.Email), userIndex{UserID: ref.ID}); err != nil {
			return err
		}
		if user.FirebaseUID != "" && !user.HasSyntheticUID() {
			if err := tx.Create(r.uidRef(user.FirebaseUID), userIndex{UserID: ref.ID}); err != nil {
				return err
			}
		}
		return tx.Create(ref, user)
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("user with email '%s' or uid '%s': %w", user.Email, user.FirebaseUID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user with email '%s': %w", user.Email, err)
	}
	user.ID = ref.ID
	return nil
}

// GetByID retrieves a user document by its ID.
func (r *firestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}
	return decodeUser(docSnap)
}

// GetByEmail retrieves the user with the given (normalized) email.
func (r *firestoreUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("email cannot be empty for GetByEmail operation")
	}
	return r.findOne(ctx, "email", email)
}

// GetByFirebaseUID retrieves the user linked to a Firebase UID.
func (r *firestoreUserRepository) GetByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	if uid == "" {
		return nil, errors.New("uid cannot be empty for GetByFirebaseUID operation")
	}
	return r.findOne(ctx, "firebaseUid", uid)
}

func (r *firestoreUserRepository) findOne(ctx context.Context, field, value string) (*models.User, error) {
	iter := r.client.Collection(usersCollection).Where(field, "==", value).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("user with %s '%s' not found: %w", field, value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by %s '%s': %w", field, value, err)
	}
	return decodeUser(doc)
}

func decodeUser(doc *firestore.DocumentSnapshot) (*models.User, error) {
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data for ID '%s': %w", doc.Ref.ID, err)
	}
	user.ID = doc.Ref.ID
	return &user, nil
}

// Update writes the mutable fields of an existing user. It does not create missing documents.
func (r *firestoreUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return errors.New("user ID cannot be empty for Update operation")
	}
	updates := []firestore.Update{
		{Path: "fullName", Value: user.FullName},
		{Path: "role", Value: user.Role},
		{Path: "suscription", Value: user.Suscription},
		{Path: "isStartSubscription", Value: user.IsStartSubscription},
		{Path: "picture", Value: user.Picture},
		{Path: "securityToken", Value: user.SecurityToken},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	_, err := r.client.Collection(usersCollection).Doc(user.ID).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("user with ID '%s' not found: %w", user.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update user with ID '%s': %w", user.ID, err)
	}
	return nil
}

// SetFirebaseUID links the user to a new Firebase UID, releasing the previous UID index entry.
func (r *firestoreUserRepository) SetFirebaseUID(ctx context.Context, userID, uid string) error {
	if userID == "" || uid == "" {
		return errors.New("userID and uid cannot be empty for SetFirebaseUID operation")
	}
	userRef := r.client.Collection(usersCollection).Doc(userID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(userRef)
		if err != nil {
			return err
		}
		var current models.User
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		if current.FirebaseUID == uid {
			return nil
		}
		if current.FirebaseUID != "" {
			if err := tx.Delete(r.uidRef(current.FirebaseUID)); err != nil {
				return err
			}
		}
		if err := tx.Create(r.uidRef(uid), userIndex{UserID: userID}); err != nil {
			return err
		}
		return tx.Update(userRef, []firestore.Update{
			{Path: "firebaseUid", Value: uid},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		case codes.AlreadyExists:
			return fmt.Errorf("uid '%s' already linked to another user: %w", uid, ErrDuplicate)
		}
		return fmt.Errorf("failed to set firebase uid for user '%s': %w", userID, err)
	}
	return nil
}

// Delete removes the user document together with its index documents.
func (r *firestoreUserRepository) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for Delete operation")
	}
	userRef := r.client.Collection(usersCollection).Doc(userID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(userRef)
		if err != nil {
			return err
		}
		var user models.User
		if err := snap.DataTo(&user); err != nil {
			return err
		}
		if user.Email != "" {
			if err := tx.Delete(r.emailRef(user.Email)); err != nil {
				return err
			}
		}
		if user.FirebaseUID != "" {
			if err := tx.Delete(r.uidRef(user.FirebaseUID)); err != nil {
				return err
			}
		}
		return tx.Delete(userRef)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete user with ID '%s': %w", userID, err)
	}
	return nil
}
