package ingest

import (
	"context"

	"github.com/hazardwatch/hazardwatch/internal/assoc"
	"github.com/hazardwatch/hazardwatch/internal/attachment"
	"github.com/hazardwatch/hazardwatch/internal/datastore/repository"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
	"github.com/hazardwatch/hazardwatch/internal/notify"
)

// persist writes candidates in one transaction. Children are reconciled
// only for hazards this run created; a matched hazard keeps what it has.
// On error nothing is committed and attachment files written by the
// transaction are removed.
func (p *Pipeline) persist(ctx context.Context, candidates []hazard.Candidate, files downloads, actor hazard.Actor, report *Report) error {
	var (
		batch   *attachment.Batch
		created []notify.HazardSummary
		summary Report
	)

	err := p.store.Transaction(ctx, func(tx *repository.Store) error {
		results, err := p.newUpserter(tx).UpsertBatch(ctx, candidates, actor)
		if err != nil {
			return err
		}

		batch = p.attachments.Begin(tx, actor)
		sync := assoc.New(tx)
		for i, r := range results {
			if !r.Created {
				summary.Matched++
				continue
			}
			c := &candidates[i]
			owner := hazard.HazardOwner(r.Hazard.ID)

			if len(c.Locations) > 0 {
				out, err := sync.SyncLocations(ctx, owner, c.Locations)
				if err != nil {
					return err
				}
				summary.Locations.Add(out.Location)
				summary.Impacts.Add(out.Impact)
			}

			payloads, err := storeFiles(ctx, batch, c.Attachments, files[i])
			if err != nil {
				return err
			}
			if len(payloads) > 0 {
				out, err := batch.Sync(ctx, owner, payloads)
				if err != nil {
					return err
				}
				summary.Attachments.Add(out.Stats)
				summary.AttachmentsCloned += out.Cloned
			}

			created = append(created, notify.Summarize(r.Hazard.UUID, c))
		}
		return nil
	})
	if err != nil {
		if batch != nil {
			batch.Rollback()
		}
		return err
	}

	report.Created = created
	report.Matched = summary.Matched
	report.Locations = summary.Locations
	report.Impacts = summary.Impacts
	report.Attachments = summary.Attachments
	report.AttachmentsCloned = summary.AttachmentsCloned
	return nil
}

// storeFiles imports the downloaded files as attachments and returns the
// payloads to sync, each referencing a stored attachment by UUID. URL
// payloads without a file are dropped.
func storeFiles(ctx context.Context, batch *attachment.Batch, payloads []hazard.AttachmentPayload, files []*httpclient.Downloaded) ([]hazard.AttachmentPayload, error) {
	out := make([]hazard.AttachmentPayload, 0, len(payloads))
	for j, a := range payloads {
		if a.UUID == "" {
			var f *httpclient.Downloaded
			if j < len(files) {
				f = files[j]
			}
			if f == nil {
				continue
			}
			stored, err := batch.Store(ctx, f, a.Identifier, a.Caption)
			if err != nil {
				return nil, err
			}
			a.UUID = stored.UUID
		}
		out = append(out, a)
	}
	return out, nil
}
