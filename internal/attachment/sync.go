package attachment

import (
	"context"

	"github.com/hazardwatch/hazardwatch/internal/assoc"
	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/datastore/repository"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

// SyncOutcome is the result of Batch.Sync.
type SyncOutcome struct {
	Attachments []Resolved // one per kept payload, input order
	Stats       assoc.Stats
	Cloned      int
	Skipped     int // payloads without identifier
}

// Sync reconciles the attachments of owner with payloads under one
// savepoint. Delete-flagged attachments are unlinked, matched ones get
// caption and identifier updates, and payloads naming an attachment the
// owner does not hold are resolved onto it (linked or cloned). Payloads
// without an identifier must be stored first and are skipped.
func (b *Batch) Sync(ctx context.Context, owner hazard.OwnerRef, payloads []hazard.AttachmentPayload) (*SyncOutcome, error) {
	var out *SyncOutcome
	err := b.tx.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		out, err = b.within(tx).sync(ctx, owner, payloads)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Batch) sync(ctx context.Context, owner hazard.OwnerRef, payloads []hazard.AttachmentPayload) (*SyncOutcome, error) {
	if err := owner.Validate(); err != nil {
		return nil, errors.New(err).Component("attachment").Category(errors.CategoryValidation).Build()
	}

	existing, err := b.tx.Attachments.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dbError(err, "list")
	}
	plan, err := assoc.Partition(existing, func(a *entities.Attachment) string { return a.UUID }, payloads)
	if err != nil {
		return nil, err
	}

	out := &SyncOutcome{}
	slots := make([]*Resolved, len(payloads))

	unlink := make([]uint, 0, len(plan.Deletes))
	for _, a := range plan.Deletes {
		unlink = append(unlink, a.ID)
	}
	if err := b.tx.Attachments.Unlink(ctx, unlink); err != nil {
		return nil, dbError(err, "unlink")
	}
	out.Stats.Deleted = len(unlink)

	for _, pair := range plan.Updates {
		a := pair.Row
		fields := map[string]any{}
		if a.Caption != pair.Payload.Caption {
			fields["caption"] = pair.Payload.Caption
		}
		if a.Identifier != pair.Payload.Identifier {
			fields["identifier"] = pair.Payload.Identifier
		}
		if len(fields) == 0 {
			out.Stats.Unchanged++
		} else {
			if err := b.tx.Attachments.Update(ctx, a.ID, fields); err != nil {
				return nil, dbError(err, "update")
			}
			a.Caption, a.Identifier = pair.Payload.Caption, pair.Payload.Identifier
			out.Stats.Updated++
		}
		slots[pair.Index] = &Resolved{Attachment: a, Resolution: Kept}
	}

	for _, c := range plan.Creates {
		if c.Payload.UUID == "" {
			out.Skipped++
			getLogger().Warn("Skipping attachment payload without identifier",
				"owner", owner.String(),
				"url", c.Payload.URL)
			continue
		}
		a, err := b.tx.Attachments.GetByUUID(ctx, c.Payload.UUID)
		if errors.Is(err, repository.ErrAttachmentNotFound) {
			return nil, errors.New(err).
				Component("attachment").
				Category(errors.CategoryNotFound).
				Context("uuid", c.Payload.UUID).
				Build()
		}
		if err != nil {
			return nil, dbError(err, "get")
		}

		resolved, err := b.Resolve(ctx, owner, []*entities.Attachment{a})
		if err != nil {
			return nil, err
		}
		r := resolved[0]
		if r.Resolution == Cloned {
			out.Cloned++
		}
		out.Stats.Created++
		slots[c.Index] = &r
	}

	for _, r := range slots {
		if r != nil {
			out.Attachments = append(out.Attachments, *r)
		}
	}
	return out, nil
}
