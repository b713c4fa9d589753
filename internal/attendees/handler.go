// Package attendees exposes the roster over HTTP: listing, presence
// mutations, CSV import/export and the printable view. Every successful
// mutation is published to the live hub so open rosters refresh.
package attendees

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classroll/backend/internal/csvio"
	"github.com/classroll/backend/internal/live"
	"github.com/classroll/backend/internal/roster"
	"github.com/classroll/backend/internal/store"
	"github.com/classroll/backend/pkg/metrics"
	"github.com/classroll/backend/pkg/queue"
	"github.com/classroll/backend/pkg/response"
	"github.com/classroll/backend/pkg/storage"
)

// maxImportSize bounds CSV upload bodies (5MB).
const maxImportSize = 5 * 1024 * 1024

// Store is the attendee collection the handlers mutate and read. Satisfied
// by *store.Repository.
type Store interface {
	ListAll(ctx context.Context) ([]roster.Attendee, error)
	ListFiltered(ctx context.Context, f store.ListFilter) ([]roster.Attendee, error)
	Stats(ctx context.Context) (roster.Stats, error)
	Create(ctx context.Context, in store.NewAttendee) (*roster.Attendee, error)
	CreateBulk(ctx context.Context, rows []csvio.Row) (int, error)
	SetPresence(ctx context.Context, id uuid.UUID, isPresent bool) (*roster.Attendee, error)
	SetPresenceBulk(ctx context.Context, ids []uuid.UUID, isPresent bool) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) (int, error)
	ResetAllPresence(ctx context.Context) (int, error)
	DistinctCourses(ctx context.Context) ([]string, error)
	DistinctBatches(ctx context.Context) ([]string, error)
	DistinctShifts(ctx context.Context) ([]string, error)
}

// Handler handles attendee HTTP endpoints.
type Handler struct {
	repo   Store
	hub    *live.Hub
	jobs   *queue.Queue // nil disables export archiving
	s3     *storage.S3  // nil disables archive download URLs
	logger *zap.Logger
}

// NewHandler creates an attendees handler. jobs and s3 may be nil when the
// archive feature is not configured.
func NewHandler(repo Store, hub *live.Hub, jobs *queue.Queue, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, hub: hub, jobs: jobs, s3: s3, logger: logger}
}

// List handles GET /attendees. course/batch/shift/present narrow the query
// server-side; search, sort and order are applied by the roster engine on the
// result, so the response is directly renderable.
func (h *Handler) List(c *gin.Context) {
	pre := store.ListFilter{
		Course:      c.Query("course"),
		Batch:       c.Query("batch"),
		Shift:       c.Query("shift"),
		PresentOnly: c.Query("present") == "true",
	}
	list, err := h.repo.ListFiltered(c.Request.Context(), pre)
	if err != nil {
		h.logger.Error("list attendees failed", zap.Error(err))
		response.Internal(c, "failed to list attendees")
		return
	}

	filter := roster.Filter{
		Presence: presenceFromQuery(c.Query("presence")),
		Search:   c.Query("search"),
	}
	list = roster.Apply(list, filter, sortFromQuery(c.Query("sort"), c.Query("order")))
	response.OK(c, gin.H{"attendees": list, "count": len(list)})
}

// Stats handles GET /attendees/stats.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		response.Internal(c, "failed to compute stats")
		return
	}
	response.OK(c, stats)
}

// StatsByCourse handles GET /attendees/stats/courses: present counts grouped
// by canonical course key, so spelling variants share a bucket.
func (h *Handler) StatsByCourse(c *gin.Context) {
	list, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("stats by course failed", zap.Error(err))
		response.Internal(c, "failed to compute stats")
		return
	}
	response.OK(c, gin.H{"present_by_course": roster.PresentByCourse(list)})
}

// Options handles GET /attendees/options: the distinct course/batch/shift
// values that populate filter dropdowns.
func (h *Handler) Options(c *gin.Context) {
	ctx := c.Request.Context()
	courses, err := h.repo.DistinctCourses(ctx)
	if err == nil {
		var batches []string
		if batches, err = h.repo.DistinctBatches(ctx); err == nil {
			var shifts []string
			if shifts, err = h.repo.DistinctShifts(ctx); err == nil {
				response.OK(c, gin.H{"courses": courses, "batches": batches, "shifts": shifts})
				return
			}
		}
	}
	h.logger.Error("filter options failed", zap.Error(err))
	response.Internal(c, "failed to load filter options")
}

// CreateRequest is the body for POST /attendees.
type CreateRequest struct {
	FullName  string `json:"full_name" binding:"required"`
	Course    string `json:"course" binding:"required"`
	Batch     string `json:"batch" binding:"required"`
	Shift     string `json:"shift"`
	ContactNo string `json:"contact_no"`
}

// Create handles POST /attendees. New records start absent.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.Course) == "" || strings.TrimSpace(req.Batch) == "" {
		response.UnprocessableEntity(c, "full_name, course and batch must not be blank")
		return
	}
	a, err := h.repo.Create(c.Request.Context(), store.NewAttendee{
		FullName:  strings.TrimSpace(req.FullName),
		Course:    strings.TrimSpace(req.Course),
		Batch:     strings.TrimSpace(req.Batch),
		Shift:     strings.TrimSpace(req.Shift),
		ContactNo: strings.TrimSpace(req.ContactNo),
	})
	if err != nil {
		h.logger.Error("create attendee failed", zap.Error(err))
		response.Internal(c, "failed to create attendee")
		return
	}
	metrics.MutationsTotal.WithLabelValues("create").Inc()
	h.hub.Publish(live.EventAttendeeCreated, a)
	h.publishStats(c)
	response.Created(c, a)
}

// Import handles POST /attendees/import. The CSV comes either as a multipart
// "file" field or as the raw request body. Header resolution is
// all-or-nothing: a missing required column imports zero records. A file with
// a valid header but no importable rows (all names blank) is a success with
// imported_count 0, since blank-name skips are not errors.
func (h *Handler) Import(c *gin.Context) {
	body, err := importBody(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	defer body.Close()

	// Read through a counter so an oversized upload is rejected outright.
	// Cutting the stream at the limit would drop the tail rows while still
	// reporting success.
	counted := &countingReader{r: io.LimitReader(body, maxImportSize+1)}
	rows, err := csvio.ParseRoster(counted)
	if counted.n > maxImportSize {
		response.UnprocessableEntity(c, "csv exceeds the 5MB import limit")
		return
	}
	if err != nil {
		response.UnprocessableEntity(c, "import failed: "+err.Error())
		return
	}

	imported, err := h.repo.CreateBulk(c.Request.Context(), rows)
	if imported > 0 {
		metrics.MutationsTotal.WithLabelValues("import").Inc()
		metrics.ImportedRowsTotal.Add(float64(imported))
		h.hub.Publish(live.EventRosterBulk, gin.H{"action": "import", "count": imported})
		h.publishStats(c)
	}
	if err != nil {
		// Partial progress stays; the count tells the caller how far it got.
		h.logger.Error("bulk import failed", zap.Int("imported", imported), zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.Body{
			Success: false,
			Data:    gin.H{"imported_count": imported},
			Error:   "import stopped after " + err.Error(),
		})
		return
	}
	response.Created(c, gin.H{"imported_count": imported})
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

func importBody(c *gin.Context) (io.ReadCloser, error) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, errors.New("failed to open uploaded file")
		}
		return f, nil
	}
	if c.Request.Body == nil {
		return nil, errors.New("missing CSV body")
	}
	return c.Request.Body, nil
}

// PresenceRequest is the body for presence mutations.
type PresenceRequest struct {
	IsPresent *bool `json:"is_present" binding:"required"`
}

// SetPresence handles PATCH /attendees/:id/presence. The check-in timestamp
// follows the flag: set on present, cleared on absent.
func (h *Handler) SetPresence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return
	}
	var req PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.repo.SetPresence(c.Request.Context(), id, *req.IsPresent)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(c, "attendee not found")
			return
		}
		h.logger.Error("set presence failed", zap.String("id", id.String()), zap.Error(err))
		response.Internal(c, "failed to update presence")
		return
	}
	metrics.MutationsTotal.WithLabelValues("presence").Inc()
	h.hub.Publish(live.EventAttendeeUpdated, a)
	h.publishStats(c)
	response.OK(c, a)
}

// BulkPresenceRequest is the body for POST /attendees/presence/bulk.
type BulkPresenceRequest struct {
	IDs       []uuid.UUID `json:"ids" binding:"required,min=1"`
	IsPresent *bool       `json:"is_present" binding:"required"`
}

// SetPresenceBulk handles POST /attendees/presence/bulk.
func (h *Handler) SetPresenceBulk(c *gin.Context) {
	var req BulkPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	updated, err := h.repo.SetPresenceBulk(c.Request.Context(), req.IDs, *req.IsPresent)
	if err != nil {
		h.logger.Error("bulk presence failed", zap.Error(err))
		response.Internal(c, "failed to update presence")
		return
	}
	metrics.MutationsTotal.WithLabelValues("presence_bulk").Inc()
	h.hub.Publish(live.EventRosterBulk, gin.H{"action": "presence", "count": updated, "is_present": *req.IsPresent})
	h.publishStats(c)
	response.OK(c, gin.H{"updated_count": updated})
}

// ResetPresence handles POST /attendees/presence/reset: everyone absent.
// Destructive; the calling surface is expected to confirm first.
func (h *Handler) ResetPresence(c *gin.Context) {
	reset, err := h.repo.ResetAllPresence(c.Request.Context())
	if err != nil {
		h.logger.Error("reset presence failed", zap.Error(err))
		response.Internal(c, "failed to reset presence")
		return
	}
	metrics.MutationsTotal.WithLabelValues("reset").Inc()
	h.hub.Publish(live.EventRosterBulk, gin.H{"action": "reset", "count": reset})
	h.publishStats(c)
	response.OK(c, gin.H{"reset_count": reset})
}

// Delete handles DELETE /attendees/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(c, "attendee not found")
			return
		}
		h.logger.Error("delete attendee failed", zap.String("id", id.String()), zap.Error(err))
		response.Internal(c, "failed to delete attendee")
		return
	}
	metrics.MutationsTotal.WithLabelValues("delete").Inc()
	h.hub.Publish(live.EventAttendeeDeleted, gin.H{"id": id})
	h.publishStats(c)
	response.OK(c, gin.H{"deleted": true})
}

// DeleteAll handles DELETE /attendees. Destructive; confirmation is the
// caller's job.
func (h *Handler) DeleteAll(c *gin.Context) {
	deleted, err := h.repo.DeleteAll(c.Request.Context())
	if err != nil {
		h.logger.Error("delete all failed", zap.Error(err))
		response.Internal(c, "failed to delete attendees")
		return
	}
	metrics.MutationsTotal.WithLabelValues("delete_all").Inc()
	h.hub.Publish(live.EventRosterBulk, gin.H{"action": "delete_all", "count": deleted})
	h.publishStats(c)
	response.OK(c, gin.H{"deleted_count": deleted})
}

// Export handles GET /attendees/export. Always the complete collection:
// export is a backup, and a forgotten on-screen filter must not thin it out.
// The print endpoint is the curated counterpart. ?archive=1 also enqueues an
// S3 snapshot job when archiving is configured.
func (h *Handler) Export(c *gin.Context) {
	list, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("export failed", zap.Error(err))
		response.Internal(c, "failed to export attendees")
		return
	}

	if c.Query("archive") == "1" {
		if h.jobs == nil {
			response.ServiceUnavailable(c, "archiving is not configured")
			return
		}
		payload := queue.ArchiveExportPayload{RequestedAt: time.Now(), RequestedBy: c.ClientIP()}
		if err := h.jobs.EnqueueArchiveExport(c.Request.Context(), payload); err != nil {
			h.logger.Error("enqueue archive failed", zap.Error(err))
		}
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="attendees.csv"`)
	c.Status(http.StatusOK)
	if err := csvio.WriteRoster(c.Writer, list); err != nil {
		h.logger.Error("write export failed", zap.Error(err))
	}
}

// ArchiveDownloadURL handles GET /archives/download-url?key=...: a pre-signed
// link to a previously uploaded snapshot.
func (h *Handler) ArchiveDownloadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "archiving is not configured")
		return
	}
	key := c.Query("key")
	if key == "" || !strings.HasPrefix(key, storage.FolderArchives+"/") {
		response.BadRequest(c, "invalid archive key")
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), key, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign archive failed", zap.String("key", key), zap.Error(err))
		response.Internal(c, "failed to generate download url")
		return
	}
	response.OK(c, gin.H{"url": url, "expires_in": int(h.s3.PresignExpire().Seconds())})
}

// publishStats pushes fresh summary counts to live subscribers after a
// mutation. Failures only cost an update; the next mutation resends.
func (h *Handler) publishStats(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		h.logger.Warn("stats publish skipped", zap.Error(err))
		return
	}
	h.hub.Publish(live.EventStats, stats)
}

func presenceFromQuery(s string) roster.PresenceFilter {
	switch s {
	case "present":
		return roster.PresencePresent
	case "absent":
		return roster.PresenceAbsent
	default:
		return roster.PresenceAll
	}
}

func sortFromQuery(key, order string) roster.Sort {
	switch roster.SortKey(key) {
	case roster.SortByName, roster.SortByCourse, roster.SortByBatch,
		roster.SortByShift, roster.SortByContact, roster.SortByPresence:
		return roster.Sort{Key: roster.SortKey(key), Desc: order == "desc"}
	default:
		return roster.Sort{}
	}
}
