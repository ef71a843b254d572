package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fawzii0x3/breath-school-api/internal/crm"
	"github.com/fawzii0x3/breath-school-api/internal/models"
	"github.com/fawzii0x3/breath-school-api/pkg/cache"
)

const (
	tagCachePrefix = "crm:tag:"
	// tagResolveTimeout bounds a shared tag lookup independently of the caller that started it.
	tagResolveTimeout = 15 * time.Second
)

// tagSynchronizer implements the TagSynchronizer interface.
// Tag name to id lookups go through a single-flight group so concurrent callers in this
// process share one list/create round trip. Separate processes can still race and
// create the same tag twice; the CRM tolerates duplicate names.
type tagSynchronizer struct {
	contacts crm.ContactStore
	tagIDs   cache.Cache
	ttl      time.Duration
	group    singleflight.Group
	logger   *zap.Logger
}

// NewTagSynchronizer creates a new TagSynchronizer. Resolved tag ids are kept in tagIDs for ttl.
func NewTagSynchronizer(cs crm.ContactStore, tagIDs cache.Cache, ttl time.Duration, logger *zap.Logger) TagSynchronizer {
	return &tagSynchronizer{contacts: cs, tagIDs: tagIDs, ttl: ttl, logger: logger}
}

// DiffTags returns the tags to add (desired but not current) and to remove (current but not desired).
// Names are compared exactly; order follows the inputs and duplicates are dropped.
func DiffTags(current, desired []string) (toAdd, toRemove []string) {
	cur := make(map[string]struct{}, len(current))
	for _, t := range current {
		cur[t] = struct{}{}
	}
	want := make(map[string]struct{}, len(desired))
	for _, t := range desired {
		if _, dup := want[t]; dup {
			continue
		}
		want[t] = struct{}{}
		if _, ok := cur[t]; !ok {
			toAdd = append(toAdd, t)
		}
	}
	seen := make(map[string]struct{}, len(current))
	for _, t := range current {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := want[t]; !ok {
			toRemove = append(toRemove, t)
		}
	}
	return toAdd, toRemove
}

// contact finds the contact by email, then reads it by id: the list endpoint is not
// guaranteed to carry the current tag set.
func (s *tagSynchronizer) contact(ctx context.Context, email string) (*crm.Contact, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	found, err := s.contacts.FindContactByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrContactNotFound, email)
		}
		return nil, fmt.Errorf("failed to find crm contact '%s': %w", email, err)
	}
	contact, err := s.contacts.GetContact(ctx, found.ID)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrContactNotFound, email)
		}
		return nil, fmt.Errorf("failed to read crm contact '%s': %w", found.ID, err)
	}
	return contact, nil
}

func (s *tagSynchronizer) SyncTags(ctx context.Context, email string, desired []string) (SyncReport, error) {
	contact, err := s.contact(ctx, email)
	if err != nil {
		return SyncReport{}, err
	}
	toAdd, toRemove := DiffTags(contact.TagNames(), desired)
	return s.apply(ctx, contact, toAdd, toRemove), nil
}

// apply runs removals before additions, one at a time. A failed operation is recorded
// and the rest still run.
func (s *tagSynchronizer) apply(ctx context.Context, contact *crm.Contact, toAdd, toRemove []string) SyncReport {
	report := SyncReport{Added: []string{}, Removed: []string{}}

	linked := make(map[string]crm.ID, len(contact.Tags))
	for _, t := range contact.Tags {
		linked[t.Name] = t.ID
	}

	for _, name := range toRemove {
		err := s.contacts.RemoveTagFromContact(ctx, contact.ID, linked[name])
		if err != nil && !errors.Is(err, crm.ErrNotFound) {
			s.logger.Warn("Failed to remove CRM tag", zap.String("tag", name), zap.String("contact_id", string(contact.ID)), zap.Error(err))
			report.Failed = append(report.Failed, TagFailure{Tag: name, Op: "remove", Err: err})
			continue
		}
		report.Removed = append(report.Removed, name)
	}

	for _, name := range toAdd {
		tagID, err := s.resolveTagID(ctx, name)
		if err == nil {
			err = s.contacts.AddTagToContact(ctx, contact.ID, tagID)
		}
		if err != nil {
			s.logger.Warn("Failed to add CRM tag", zap.String("tag", name), zap.String("contact_id", string(contact.ID)), zap.Error(err))
			report.Failed = append(report.Failed, TagFailure{Tag: name, Op: "add", Err: err})
			continue
		}
		report.Added = append(report.Added, name)
	}
	return report
}

// resolveTagID finds the id of the named tag, creating the tag when the CRM has none.
// The shared lookup runs detached from any single caller; each caller stops waiting when
// its own context ends.
func (s *tagSynchronizer) resolveTagID(ctx context.Context, name string) (crm.ID, error) {
	ch := s.group.DoChan(name, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tagResolveTimeout)
		defer cancel()

		if id, found, err := s.tagIDs.Get(ctx, tagCachePrefix+name); err == nil && found {
			return crm.ID(id), nil
		}

		id, err := s.findTagID(ctx, name)
		if err != nil {
			return crm.ID(""), err
		}
		if id == "" {
			tag, createErr := s.contacts.CreateTag(ctx, name)
			if createErr != nil {
				// Another process may have created it in the meantime.
				if id, err = s.findTagID(ctx, name); err != nil || id == "" {
					return crm.ID(""), fmt.Errorf("failed to create tag '%s': %w", name, createErr)
				}
			} else {
				id = tag.ID
				s.logger.Info("Created CRM tag", zap.String("tag", name), zap.String("tag_id", string(id)))
			}
		}

		if err := s.tagIDs.Set(ctx, tagCachePrefix+name, string(id), s.ttl); err != nil {
			s.logger.Debug("Failed to cache tag id", zap.String("tag", name), zap.Error(err))
		}
		return id, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(crm.ID), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *tagSynchronizer) findTagID(ctx context.Context, name string) (crm.ID, error) {
	tags, err := s.contacts.ListTags(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list tags: %w", err)
	}
	for _, t := range tags {
		if t.Name == name {
			return t.ID, nil
		}
	}
	return "", nil
}

func (s *tagSynchronizer) AddTag(ctx context.Context, email, name string) error {
	contact, err := s.contact(ctx, email)
	if err != nil {
		return err
	}
	toAdd, _ := DiffTags(contact.TagNames(), []string{name})
	report := s.apply(ctx, contact, toAdd, nil)
	if len(report.Failed) > 0 {
		return report.Failed[0].Err
	}
	return nil
}

// RemoveTag unlinks the named tag. A missing contact or tag is not an error.
func (s *tagSynchronizer) RemoveTag(ctx context.Context, email, name string) error {
	contact, err := s.contact(ctx, email)
	if err != nil {
		if errors.Is(err, ErrContactNotFound) {
			return nil
		}
		return err
	}
	var toRemove []string
	for _, t := range contact.TagNames() {
		if t == name {
			toRemove = []string{name}
			break
		}
	}
	report := s.apply(ctx, contact, nil, toRemove)
	if len(report.Failed) > 0 {
		return report.Failed[0].Err
	}
	return nil
}

// RemoveAllTags unlinks every tag from the contact. A missing contact yields an empty report.
func (s *tagSynchronizer) RemoveAllTags(ctx context.Context, email string) (SyncReport, error) {
	contact, err := s.contact(ctx, email)
	if err != nil {
		if errors.Is(err, ErrContactNotFound) {
			return SyncReport{Added: []string{}, Removed: []string{}}, nil
		}
		return SyncReport{}, err
	}
	_, toRemove := DiffTags(contact.TagNames(), nil)
	return s.apply(ctx, contact, nil, toRemove), nil
}
