// Package attachment stores attachment files and links them to owners while
// keeping every attachment single-owner.
//
// An attachment is linked directly when it is unlinked and was created by
// the requesting actor. In every other case (owned by someone else, or
// created by another actor) the file and metadata are cloned into a new
// attachment which is linked instead; the original is never modified.
package attachment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/datastore/repository"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
	"github.com/hazardwatch/hazardwatch/internal/logging"
)

// Resolution says how an attachment ended up on its owner.
type Resolution string

const (
	Kept   Resolution = "kept"   // already owned by the target
	Linked Resolution = "linked" // unlinked original now owned by the target
	Cloned Resolution = "cloned" // a copy was made for the target
)

// Resolved is one attachment after resolution.
type Resolved struct {
	Attachment *entities.Attachment
	Resolution Resolution
	Source     *entities.Attachment // original when cloned
}

// Manager stores and resolves attachments.
type Manager struct {
	blobs *BlobStore
}

// NewManager creates a Manager writing files to blobs.
func NewManager(blobs *BlobStore) *Manager {
	return &Manager{blobs: blobs}
}

// Blobs returns the underlying file store.
func (m *Manager) Blobs() *BlobStore {
	return m.blobs
}

func getLogger() *slog.Logger {
	return logging.ForService("attachment")
}

// Batch groups attachment writes of one transaction. Files written through
// a Batch are removed by Rollback when the transaction does not commit.
type Batch struct {
	m     *Manager
	tx    *repository.Store
	actor hazard.Actor
	log   *fileLog
}

// fileLog records files written by a batch and its savepoint children.
type fileLog struct {
	mu    sync.Mutex
	files []string
}

// Begin starts a Batch bound to a transactional store and actor.
func (m *Manager) Begin(tx *repository.Store, actor hazard.Actor) *Batch {
	return &Batch{m: m, tx: tx, actor: actor, log: &fileLog{}}
}

// within returns a Batch sharing b's file log but writing through tx.
func (b *Batch) within(tx *repository.Store) *Batch {
	return &Batch{m: b.m, tx: tx, actor: b.actor, log: b.log}
}

func (b *Batch) track(rel string) {
	b.log.mu.Lock()
	b.log.files = append(b.log.files, rel)
	b.log.mu.Unlock()
}

// Files returns the relative paths written so far.
func (b *Batch) Files() []string {
	b.log.mu.Lock()
	defer b.log.mu.Unlock()
	return append([]string(nil), b.log.files...)
}

// Rollback removes every file this batch wrote. Call it when the
// transaction rolled back.
func (b *Batch) Rollback() {
	b.log.mu.Lock()
	files := b.log.files
	b.log.files = nil
	b.log.mu.Unlock()
	for _, rel := range files {
		if err := b.m.blobs.Remove(rel); err != nil {
			getLogger().Warn("Failed to remove attachment file after rollback", "file", rel, "error", err)
		}
	}
}

// Store imports a downloaded file as a new unlinked attachment created by
// the batch actor. file is consumed; its temp path no longer exists after
// a successful call.
func (b *Batch) Store(ctx context.Context, file *httpclient.Downloaded, identifier, caption string) (*entities.Attachment, error) {
	rel, err := b.m.blobs.Import(file.Path, file.Filename)
	if err != nil {
		return nil, err
	}
	b.track(rel)
	file.Path = ""

	a := &entities.Attachment{
		File:       rel,
		Filename:   file.Filename,
		Filesize:   file.Size,
		Filemime:   file.MimeType,
		Identifier: identifier,
		Caption:    caption,
	}
	if err := b.tx.Attachments.Create(ctx, a); err != nil {
		return nil, dbError(err, "create")
	}
	if _, err := b.tx.Activities.Record(ctx, attachmentSubject(a), b.actor, entities.VerbCreated); err != nil {
		return nil, dbError(err, "record_activity")
	}
	return a, nil
}

// Resolve links each attachment to owner, cloning where direct linking
// would move an attachment away from another owner or actor.
func (b *Batch) Resolve(ctx context.Context, owner hazard.OwnerRef, attachments []*entities.Attachment) ([]Resolved, error) {
	if err := owner.Validate(); err != nil {
		return nil, errors.New(err).Component("attachment").Category(errors.CategoryValidation).Build()
	}

	out := make([]Resolved, 0, len(attachments))
	for _, a := range attachments {
		if a.OwnedBy(string(owner.Kind), owner.ID) {
			out = append(out, Resolved{Attachment: a, Resolution: Kept})
			continue
		}

		if !a.Linked() {
			ok, err := b.createdByActor(ctx, a)
			if err != nil {
				return nil, err
			}
			if ok {
				if err := b.tx.Attachments.Link(ctx, a.ID, owner); err != nil {
					return nil, dbError(err, "link")
				}
				kind := string(owner.Kind)
				id := owner.ID
				a.OwnerKind, a.OwnerID = &kind, &id
				out = append(out, Resolved{Attachment: a, Resolution: Linked})
				continue
			}
		}

		clone, err := b.clone(ctx, a, owner)
		if err != nil {
			return nil, err
		}
		getLogger().Debug("Cloned attachment for new owner",
			"source_uuid", a.UUID,
			"clone_uuid", clone.UUID,
			"owner", owner.String(),
			"actor", b.actor.String())
		out = append(out, Resolved{Attachment: clone, Resolution: Cloned, Source: a})
	}
	return out, nil
}

// createdByActor reports whether the batch actor created a. Attachments
// without an attribution record count as created by the system.
func (b *Batch) createdByActor(ctx context.Context, a *entities.Attachment) (bool, error) {
	creator, err := b.tx.Activities.FirstActor(ctx, attachmentSubject(a))
	if errors.Is(err, repository.ErrActivityNotFound) {
		creator = hazard.SystemActor
	} else if err != nil {
		return false, dbError(err, "first_actor")
	}
	return creator == b.actor, nil
}

func (b *Batch) clone(ctx context.Context, src *entities.Attachment, owner hazard.OwnerRef) (*entities.Attachment, error) {
	rel, err := b.m.blobs.Copy(src.File)
	if err != nil {
		return nil, err
	}
	b.track(rel)

	kind := string(owner.Kind)
	id := owner.ID
	clone := &entities.Attachment{
		OwnerKind:  &kind,
		OwnerID:    &id,
		File:       rel,
		Filename:   src.Filename,
		Filesize:   src.Filesize,
		Filemime:   src.Filemime,
		Identifier: src.Identifier,
		Caption:    src.Caption,
	}
	if err := b.tx.Attachments.Create(ctx, clone); err != nil {
		return nil, dbError(err, "create_clone")
	}
	if _, err := b.tx.Activities.Record(ctx, attachmentSubject(clone), b.actor, entities.VerbCloned); err != nil {
		return nil, dbError(err, "record_activity")
	}
	return clone, nil
}

func attachmentSubject(a *entities.Attachment) hazard.OwnerRef {
	return hazard.OwnerRef{Kind: hazard.OwnerAttachment, ID: a.ID}
}

func dbError(err error, operation string) error {
	return errors.New(err).
		Component("attachment").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
