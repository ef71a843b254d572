package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/db"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

type userFixture struct {
	repo     *memUserRepo
	favs     *memFavoriteRepo
	contacts *fakeCRM
	deleter  *recordingDeleter
	pub      *recordingPublisher
	svc      UserService
}

func newUserFixture(t *testing.T) *userFixture {
	return newUserFixtureWith(t, UserServiceOptions{})
}

func newUserFixtureWith(t *testing.T, opts UserServiceOptions) *userFixture {
	t.Helper()
	f := &userFixture{
		repo:     newMemUserRepo(),
		favs:     newMemFavoriteRepo(),
		contacts: newFakeCRM(),
		deleter:  &recordingDeleter{},
		pub:      &recordingPublisher{},
	}
	f.svc = NewUserService(f.repo, f.favs, newSync(f.contacts), f.contacts, f.deleter, f.pub, opts, zap.NewNop())
	return f
}

func (f *userFixture) seed(t *testing.T, u *models.User) *models.User {
	t.Helper()
	require.NoError(t, f.repo.Create(context.Background(), u))
	return u
}

func boolPtr(b bool) *bool { return &b }

func TestUpdateSubscriptionStatusAddsPremiumTag(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com", FullName: "Ana"})
	f.contacts.seedContact("ana@example.com", "Ana", "", "music_lover")

	updated, err := f.svc.UpdateSubscriptionStatus(context.Background(), u.ID, models.UpdateSubscriptionRequest{
		Suscription:         boolPtr(true),
		IsStartSubscription: boolPtr(true),
	})
	require.NoError(t, err)
	assert.True(t, updated.Suscription)
	assert.True(t, updated.IsStartSubscription)
	assert.Equal(t, []string{"music_lover", "premium"}, f.contacts.contactTags("ana@example.com"))
	assert.Equal(t, []string{EventUserSubscriptionChanged}, f.pub.keys())

	stored, _ := f.repo.GetByID(context.Background(), u.ID)
	assert.True(t, stored.Suscription)
}

func TestUpdateSubscriptionStatusRemovesPremiumTag(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com", Suscription: true})
	f.contacts.seedContact("ana@example.com", "Ana", "", "premium", "music_lover")

	_, err := f.svc.UpdateSubscriptionStatus(context.Background(), u.ID, models.UpdateSubscriptionRequest{Suscription: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, []string{"music_lover"}, f.contacts.contactTags("ana@example.com"))
}

func TestUpdateSubscriptionStatusSucceedsWhenCRMFails(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com"})
	f.contacts.failOps["find"] = errors.New("crm down")

	updated, err := f.svc.UpdateSubscriptionStatus(context.Background(), u.ID, models.UpdateSubscriptionRequest{Suscription: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Suscription)
}

func TestUpdateSubscriptionStatusOnlyStartFlagLeavesTags(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com"})
	f.contacts.seedContact("ana@example.com", "Ana", "")

	_, err := f.svc.UpdateSubscriptionStatus(context.Background(), u.ID, models.UpdateSubscriptionRequest{IsStartSubscription: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, 0, f.contacts.callCount("find"))
}

func TestUpdateSubscriptionStatusUnknownUser(t *testing.T) {
	f := newUserFixture(t)
	_, err := f.svc.UpdateSubscriptionStatus(context.Background(), "missing", models.UpdateSubscriptionRequest{Suscription: boolPtr(true)})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAddFavoriteTogglesAndTags(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com"})
	f.contacts.seedContact("ana@example.com", "Ana", "")
	f.favs.seedItem(models.FavoriteMusic, "track-1")
	f.favs.seedItem(models.FavoriteVideo, "video-9")

	res, err := f.svc.AddFavoriteMusic(context.Background(), u.ID, "track-1")
	require.NoError(t, err)
	assert.Equal(t, &models.FavoriteResult{ItemID: "track-1", Kind: models.FavoriteMusic, Favorited: true}, res)
	assert.Equal(t, []string{u.ID}, f.favs.favorites(models.FavoriteMusic, "track-1"))

	res, err = f.svc.AddFavoriteVideo(context.Background(), u.ID, " video-9 ")
	require.NoError(t, err)
	assert.True(t, res.Favorited)
	assert.Equal(t, []string{"music_lover", "video_lover"}, f.contacts.contactTags("ana@example.com"))

	// A second toggle removes the favorite and leaves the tags alone.
	res, err = f.svc.AddFavoriteMusic(context.Background(), u.ID, "track-1")
	require.NoError(t, err)
	assert.False(t, res.Favorited)
	assert.Empty(t, f.favs.favorites(models.FavoriteMusic, "track-1"))
	assert.Equal(t, []string{"music_lover", "video_lover"}, f.contacts.contactTags("ana@example.com"))
	assert.Equal(t, 0, f.contacts.callCount("remove_tag"))
}

func TestAddFavoriteUnknownItem(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com"})
	f.contacts.seedContact("ana@example.com", "Ana", "")

	_, err := f.svc.AddFavoriteMusic(context.Background(), u.ID, "nope")
	assert.ErrorIs(t, err, ErrMediaNotFound)
	assert.Empty(t, f.contacts.contactTags("ana@example.com"))
	assert.Equal(t, 0, f.contacts.totalCalls())

	_, err = f.svc.AddFavoriteMusic(context.Background(), u.ID, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.AddFavoriteVideo(context.Background(), "missing", "video-9")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAddFavoriteSkipsTagWhenWriteFails(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com"})
	f.contacts.seedContact("ana@example.com", "Ana", "")
	f.favs.seedItem(models.FavoriteMusic, "track-1")
	f.favs.failWrite = errors.New("firestore unavailable")

	_, err := f.svc.AddFavoriteMusic(context.Background(), u.ID, "track-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMediaNotFound)
	assert.Equal(t, 0, f.contacts.totalCalls())
}

func TestAddFavoriteSucceedsWhenCRMFails(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com"})
	f.favs.seedItem(models.FavoriteVideo, "video-9")
	f.contacts.failOps["find"] = errors.New("crm down")

	res, err := f.svc.AddFavoriteVideo(context.Background(), u.ID, "video-9")
	require.NoError(t, err)
	assert.True(t, res.Favorited)
	assert.Equal(t, []string{u.ID}, f.favs.favorites(models.FavoriteVideo, "video-9"))
}

func TestDeleteUser(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com", FirebaseUID: "firebase-uid"})
	f.contacts.seedContact("ana@example.com", "Ana", "", "premium")

	f.favs.seedItem(models.FavoriteMusic, "track-1")
	_, err := f.svc.AddFavoriteMusic(context.Background(), u.ID, "track-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteUser(context.Background(), u.ID))
	_, err = f.repo.GetByID(context.Background(), u.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Equal(t, []string{"firebase-uid"}, f.deleter.deleted)
	assert.Empty(t, f.favs.favorites(models.FavoriteMusic, "track-1"))
	assert.Empty(t, f.contacts.contactTags("ana@example.com"))
	_, stillThere := f.contacts.contact("ana@example.com")
	assert.True(t, stillThere, "contact is kept unless configured otherwise")
	assert.Equal(t, 0, f.contacts.callCount("delete_contact"))
	assert.Equal(t, []string{EventUserDeleted}, f.pub.keys())
}

func TestDeleteUserDeletesCRMContactWhenConfigured(t *testing.T) {
	f := newUserFixtureWith(t, UserServiceOptions{DeleteCRMContact: true})
	u := f.seed(t, &models.User{Email: "ana@example.com", FirebaseUID: "firebase-uid"})
	f.contacts.seedContact("ana@example.com", "Ana", "", "premium")

	require.NoError(t, f.svc.DeleteUser(context.Background(), u.ID))
	_, found := f.contacts.contact("ana@example.com")
	assert.False(t, found)
	assert.Equal(t, 1, f.contacts.callCount("delete_contact"))
	assert.Equal(t, 0, f.contacts.callCount("remove_tag"))
}

func TestDeleteUserToleratesCRMContactDeleteFailure(t *testing.T) {
	f := newUserFixtureWith(t, UserServiceOptions{DeleteCRMContact: true})
	u := f.seed(t, &models.User{Email: "ana@example.com"})
	f.contacts.seedContact("ana@example.com", "Ana", "")
	f.contacts.failOps["delete_contact"] = errors.New("crm down")

	require.NoError(t, f.svc.DeleteUser(context.Background(), u.ID))
	_, err := f.repo.GetByID(context.Background(), u.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestDeleteUserSkipsSyntheticUIDAndToleratesFailures(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com", FirebaseUID: "systeme_123"})
	f.contacts.failOps["find"] = errors.New("crm down")

	require.NoError(t, f.svc.DeleteUser(context.Background(), u.ID))
	assert.Empty(t, f.deleter.deleted)
}

func TestUpdateProfile(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com", FullName: "ana"})

	name, pic := "  Ana Ruiz ", "https://img/ana.png"
	updated, err := f.svc.UpdateProfile(context.Background(), u.ID, models.UpdateProfileRequest{FullName: &name, Picture: &pic})
	require.NoError(t, err)
	assert.Equal(t, "Ana Ruiz", updated.FullName)
	assert.Equal(t, pic, updated.Picture)

	empty := " "
	_, err = f.svc.UpdateProfile(context.Background(), u.ID, models.UpdateProfileRequest{FullName: &empty})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateProfileRenamesCRMContact(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com", FullName: "ana"})
	f.contacts.seedContact("ana@example.com", "ana", "")

	name := "Ana Maria Ruiz"
	_, err := f.svc.UpdateProfile(context.Background(), u.ID, models.UpdateProfileRequest{FullName: &name})
	require.NoError(t, err)
	c, ok := f.contacts.contact("ana@example.com")
	require.True(t, ok)
	assert.Equal(t, "Ana", c.FirstName)
	assert.Equal(t, "Maria Ruiz", c.LastName)

	// Same name or picture only: no CRM traffic.
	pic := "https://img/ana.png"
	_, err = f.svc.UpdateProfile(context.Background(), u.ID, models.UpdateProfileRequest{FullName: &name, Picture: &pic})
	require.NoError(t, err)
	assert.Equal(t, 1, f.contacts.callCount("update_contact"))
}

func TestUpdateProfileSucceedsWhenCRMFails(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com", FullName: "ana"})
	f.contacts.seedContact("ana@example.com", "ana", "")
	f.contacts.failOps["update_contact"] = errors.New("crm down")

	name := "Ana Ruiz"
	updated, err := f.svc.UpdateProfile(context.Background(), u.ID, models.UpdateProfileRequest{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ana Ruiz", updated.FullName)

	stored, _ := f.repo.GetByID(context.Background(), u.ID)
	assert.Equal(t, "Ana Ruiz", stored.FullName)
}

func TestCreateUserDefaultsAndDuplicates(t *testing.T) {
	f := newUserFixture(t)

	u, err := f.svc.CreateUser(context.Background(), &models.User{Email: " Bob@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u.Email)
	assert.Equal(t, "bob", u.FullName)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.Equal(t, []string{EventUserCreated}, f.pub.keys())

	_, err = f.svc.CreateUser(context.Background(), &models.User{Email: "bob@example.com"})
	assert.ErrorIs(t, err, db.ErrDuplicate)
}

func TestGetByIDFillsPromotionDays(t *testing.T) {
	f := newUserFixture(t)
	u := f.seed(t, &models.User{Email: "ana@example.com"})
	svc := f.svc.(*userService)
	svc.now = func() time.Time { return time.Now().Add(72*time.Hour + time.Minute) }

	got, err := svc.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.PromotionDays)
}
