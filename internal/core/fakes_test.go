package core

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fawzii0x3/breath-school-api/internal/crm"
	"github.com/fawzii0x3/breath-school-api/internal/db"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

type memUserRepo struct {
	mu      sync.Mutex
	seq     int
	byID    map[string]*models.User
	failNew error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*models.User{}}
}

func (r *memUserRepo) copyOf(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		return r.copyOf(u), nil
	}
	return nil, db.ErrNotFound
}

func (r *memUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if match(u) {
			return r.copyOf(u), nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *memUserRepo) GetByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.FirebaseUID == uid })
}

func (r *memUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNew != nil {
		return r.failNew
	}
	user.Email = models.NormalizeEmail(user.Email)
	for _, u := range r.byID {
		if u.Email == user.Email || (user.FirebaseUID != "" && u.FirebaseUID == user.FirebaseUID) {
			return db.ErrDuplicate
		}
	}
	r.seq++
	user.ID = "user-" + strconv.Itoa(r.seq)
	user.CreatedAt = time.Now()
	r.byID[user.ID] = r.copyOf(user)
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[user.ID]
	if !ok {
		return db.ErrNotFound
	}
	u.FullName, u.Role, u.Picture = user.FullName, user.Role, user.Picture
	u.Suscription, u.IsStartSubscription = user.Suscription, user.IsStartSubscription
	return nil
}

func (r *memUserRepo) SetFirebaseUID(_ context.Context, userID, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.FirebaseUID = uid
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[userID]; !ok {
		return db.ErrNotFound
	}
	delete(r.byID, userID)
	return nil
}

func (r *memUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// fakeCRM is an in-memory ContactStore that counts calls.
type fakeCRM struct {
	mu        sync.Mutex
	seq       int
	contacts  map[string]*crm.Contact
	tags      []crm.Tag
	calls     map[string]int
	failOps   map[string]error
	failTags  map[string]error
	createLag time.Duration
	onCreate  func()
	// listOmitsTags makes FindContactByEmail return contacts without tags, like the CRM's list endpoint may.
	listOmitsTags bool
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		contacts: map[string]*crm.Contact{},
		calls:    map[string]int{},
		failOps:  map[string]error{},
		failTags: map[string]error{},
	}
}

func (f *fakeCRM) nextID() crm.ID {
	f.seq++
	return crm.ID(strconv.Itoa(f.seq))
}

func (f *fakeCRM) call(op string) error {
	f.calls[op]++
	return f.failOps[op]
}

func (f *fakeCRM) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeCRM) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// seedContact adds a contact carrying the named tags, creating the tags as needed.
func (f *fakeCRM) seedContact(email, first, last string, tags ...string) *crm.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &crm.Contact{ID: f.nextID(), Email: email, FirstName: first, LastName: last}
	for _, name := range tags {
		c.Tags = append(c.Tags, f.tagLocked(name))
	}
	f.contacts[email] = c
	return c
}

func (f *fakeCRM) tagLocked(name string) crm.Tag {
	for _, t := range f.tags {
		if t.Name == name {
			return t
		}
	}
	t := crm.Tag{ID: f.nextID(), Name: name}
	f.tags = append(f.tags, t)
	return t
}

func (f *fakeCRM) contactTags(email string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[email]
	if !ok {
		return nil
	}
	names := c.TagNames()
	sort.Strings(names)
	return names
}

func (f *fakeCRM) FindContactByEmail(_ context.Context, email string) (*crm.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("find"); err != nil {
		return nil, err
	}
	c, ok := f.contacts[models.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("contact %s: %w", email, crm.ErrNotFound)
	}
	cp := *c
	cp.Tags = nil
	if !f.listOmitsTags {
		cp.Tags = append([]crm.Tag(nil), c.Tags...)
	}
	return &cp, nil
}

func (f *fakeCRM) CreateContact(_ context.Context, req crm.CreateContactRequest) (*crm.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("create_contact"); err != nil {
		return nil, err
	}
	c := &crm.Contact{ID: f.nextID(), Email: req.Email, FirstName: req.FirstName, LastName: req.LastName}
	f.contacts[req.Email] = c
	return c, nil
}

func (f *fakeCRM) byIDLocked(id crm.ID) (string, *crm.Contact) {
	for email, c := range f.contacts {
		if c.ID == id {
			return email, c
		}
	}
	return "", nil
}

func (f *fakeCRM) GetContact(_ context.Context, id crm.ID) (*crm.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("get_contact"); err != nil {
		return nil, err
	}
	_, c := f.byIDLocked(id)
	if c == nil {
		return nil, fmt.Errorf("contact %s: %w", id, crm.ErrNotFound)
	}
	cp := *c
	cp.Tags = append([]crm.Tag(nil), c.Tags...)
	return &cp, nil
}

func (f *fakeCRM) UpdateContact(_ context.Context, id crm.ID, req crm.UpdateContactRequest) (*crm.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("update_contact"); err != nil {
		return nil, err
	}
	_, c := f.byIDLocked(id)
	if c == nil {
		return nil, fmt.Errorf("contact %s: %w", id, crm.ErrNotFound)
	}
	if req.FirstName != nil {
		c.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		c.LastName = *req.LastName
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCRM) DeleteContact(_ context.Context, id crm.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("delete_contact"); err != nil {
		return err
	}
	email, c := f.byIDLocked(id)
	if c == nil {
		return fmt.Errorf("contact %s: %w", id, crm.ErrNotFound)
	}
	delete(f.contacts, email)
	return nil
}

func (f *fakeCRM) contact(email string) (*crm.Contact, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[email]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

func (f *fakeCRM) ListTags(_ context.Context) ([]crm.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("list_tags"); err != nil {
		return nil, err
	}
	return append([]crm.Tag(nil), f.tags...), nil
}

func (f *fakeCRM) CreateTag(ctx context.Context, name string) (*crm.Tag, error) {
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.createLag > 0 {
		select {
		case <-time.After(f.createLag):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("create_tag"); err != nil {
		return nil, err
	}
	t := crm.Tag{ID: f.nextID(), Name: name}
	f.tags = append(f.tags, t)
	return &t, nil
}

func (f *fakeCRM) AddTagToContact(_ context.Context, contactID, tagID crm.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("add_tag"); err != nil {
		return err
	}
	var tag *crm.Tag
	for i := range f.tags {
		if f.tags[i].ID == tagID {
			tag = &f.tags[i]
		}
	}
	if tag == nil {
		return crm.ErrNotFound
	}
	if err := f.failTags[tag.Name]; err != nil {
		return err
	}
	for _, c := range f.contacts {
		if c.ID == contactID {
			c.Tags = append(c.Tags, *tag)
			return nil
		}
	}
	return crm.ErrNotFound
}

func (f *fakeCRM) RemoveTagFromContact(_ context.Context, contactID, tagID crm.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("remove_tag"); err != nil {
		return err
	}
	for _, c := range f.contacts {
		if c.ID != contactID {
			continue
		}
		for i, t := range c.Tags {
			if t.ID == tagID {
				if err := f.failTags[t.Name]; err != nil {
					return err
				}
				c.Tags = append(c.Tags[:i], c.Tags[i+1:]...)
				return nil
			}
		}
	}
	return crm.ErrNotFound
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type recordingDeleter struct {
	deleted []string
	err     error
}

func (d *recordingDeleter) DeleteUser(_ context.Context, uid string) error {
	d.deleted = append(d.deleted, uid)
	return d.err
}

// memFavoriteRepo keeps the favorites list of each seeded media item.
type memFavoriteRepo struct {
	mu        sync.Mutex
	items     map[models.FavoriteKind]map[string][]string
	failWrite error
}

func newMemFavoriteRepo() *memFavoriteRepo {
	return &memFavoriteRepo{items: map[models.FavoriteKind]map[string][]string{
		models.FavoriteMusic: {},
		models.FavoriteVideo: {},
	}}
}

func (r *memFavoriteRepo) seedItem(kind models.FavoriteKind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[kind][id] = []string{}
}

func (r *memFavoriteRepo) favorites(kind models.FavoriteKind, id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.items[kind][id]...)
}

func (r *memFavoriteRepo) ToggleFavorite(_ context.Context, kind models.FavoriteKind, itemID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		return false, r.failWrite
	}
	favs, ok := r.items[kind][itemID]
	if !ok {
		return false, fmt.Errorf("%s item '%s': %w", kind, itemID, db.ErrNotFound)
	}
	if i := slices.Index(favs, userID); i >= 0 {
		r.items[kind][itemID] = slices.Delete(favs, i, i+1)
		return false, nil
	}
	r.items[kind][itemID] = append(favs, userID)
	return true, nil
}

func (r *memFavoriteRepo) RemoveUserFavorites(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, byID := range r.items {
		for id, favs := range byID {
			byID[id] = slices.DeleteFunc(favs, func(u string) bool { return u == userID })
		}
	}
	return nil
}
