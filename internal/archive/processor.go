// Package archive uploads full-roster CSV snapshots to S3 off the request
// path, consuming jobs from the Redis queue.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/classroll/backend/internal/csvio"
	"github.com/classroll/backend/internal/roster"
	"github.com/classroll/backend/pkg/queue"
	"github.com/classroll/backend/pkg/storage"
)

// RosterSource reads the collection to snapshot. Satisfied by
// *store.Repository.
type RosterSource interface {
	ListAll(ctx context.Context) ([]roster.Attendee, error)
}

// Processor turns archive jobs into S3 objects.
type Processor struct {
	repo   RosterSource
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewProcessor creates an archive processor.
func NewProcessor(repo RosterSource, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{repo: repo, s3: s3, queue: q, logger: logger}
}

// Process executes one archive job: snapshot the collection as it is now and
// upload it. The job payload records who asked and when; the data comes from
// the store at processing time.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeArchiveExport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ArchiveExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	list, err := p.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list attendees: %w", err)
	}

	var buf bytes.Buffer
	if err := csvio.WriteRoster(&buf, list); err != nil {
		return fmt.Errorf("serialize roster: %w", err)
	}

	key := storage.ArchiveKey(time.Now())
	if _, err := p.s3.UploadArchive(ctx, key, &buf); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	p.logger.Info("roster archive uploaded",
		zap.String("key", key),
		zap.Int("records", len(list)),
		zap.Time("requested_at", payload.RequestedAt))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
