package ingest

import (
	"context"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
)

// Reasons an attachment payload is skipped.
const (
	skipNoDownloader = "disabled"
	skipFetch        = "fetch_failed"
	skipRejected     = "rejected"
)

// downloads holds the fetched file of every attachment payload, indexed
// like the candidates and their Attachments. Unfetched slots are nil.
type downloads [][]*httpclient.Downloaded

// cleanup removes every temp file still present. Files consumed by the blob
// store have an empty path and are left alone.
func (d downloads) cleanup() {
	for _, files := range d {
		for _, f := range files {
			f.Cleanup()
		}
	}
}

// download fetches the URL attachments of every candidate outside the
// transaction. Failures skip the attachment and never fail the run.
func (p *Pipeline) download(ctx context.Context, source string, candidates []hazard.Candidate, report *Report) downloads {
	files := make(downloads, len(candidates))
	for i := range candidates {
		files[i] = make([]*httpclient.Downloaded, len(candidates[i].Attachments))
		for j, a := range candidates[i].Attachments {
			if a.UUID != "" || a.Delete || a.URL == "" {
				continue
			}
			if p.downloader == nil {
				p.skipAttachment(source, skipNoDownloader, report)
				continue
			}

			f, err := p.downloader.Download(ctx, a.URL)
			if err != nil {
				reason := skipFetch
				if errors.IsCategory(err, errors.CategoryValidation) {
					reason = skipRejected
				}
				getLogger().Warn("Skipping attachment",
					"source", source,
					"hazard", candidates[i].Title,
					"url", a.URL,
					"reason", reason,
					"error", err)
				p.skipAttachment(source, reason, report)
				continue
			}
			files[i][j] = f
		}
	}
	return files
}

func (p *Pipeline) skipAttachment(source, reason string, report *Report) {
	report.AttachmentsSkipped++
	p.recorder.RecordAttachmentSkipped(source, reason)
}
