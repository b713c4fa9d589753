package attendees

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classroll/backend/internal/csvio"
	"github.com/classroll/backend/internal/roster"
	"github.com/classroll/backend/pkg/response"
)

var printTmpl = template.Must(template.New("print").Parse(printPage))

type printRow struct {
	Index     int
	FullName  string
	Course    string
	Batch     string
	Shift     string
	ContactNo string
	Present   string
	CheckedIn string
}

type printData struct {
	GeneratedAt string
	SortLine    string
	Stats       roster.Stats
	Rows        []printRow
}

// Print handles GET /attendees/print: a standalone printable document of the
// filtered+sorted view. Unlike export, this honors the caller's filters —
// it is the curated printout, not the backup. ?ids=a,b,c narrows to a
// selection instead.
func (h *Handler) Print(c *gin.Context) {
	list, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("print list failed", zap.Error(err))
		response.Internal(c, "failed to load attendees")
		return
	}

	if ids, ok := idsFromQuery(c.QueryArray("ids")); ok {
		list = narrowToIDs(list, ids)
	} else {
		filter := roster.Filter{
			Course:   c.Query("course"),
			Batch:    c.Query("batch"),
			Shift:    c.Query("shift"),
			Presence: presenceFromQuery(c.Query("presence")),
			Search:   c.Query("search"),
		}
		list = roster.Apply(list, filter, roster.Sort{})
	}
	srt := sortFromQuery(c.Query("sort"), c.Query("order"))
	list = roster.Apply(list, roster.Filter{}, srt)

	data := printData{
		GeneratedAt: time.Now().Format("02 Jan 2006 15:04"),
		SortLine:    describeSort(srt),
		Stats:       roster.ComputeStats(list),
		Rows:        make([]printRow, 0, len(list)),
	}
	for i, a := range list {
		present := "No"
		if a.IsPresent {
			present = "Yes"
		}
		data.Rows = append(data.Rows, printRow{
			Index:     i + 1,
			FullName:  a.FullName,
			Course:    a.Course,
			Batch:     a.Batch,
			Shift:     a.Shift,
			ContactNo: a.ContactNo,
			Present:   present,
			CheckedIn: csvio.FormatCheckedIn(a.CheckedInAt),
		})
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := printTmpl.Execute(c.Writer, data); err != nil {
		h.logger.Error("render print view failed", zap.Error(err))
	}
}

func idsFromQuery(raw []string) ([]uuid.UUID, bool) {
	var ids []uuid.UUID
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, len(ids) > 0
}

func narrowToIDs(list []roster.Attendee, ids []uuid.UUID) []roster.Attendee {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]roster.Attendee, 0, len(ids))
	for _, a := range list {
		if want[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

func describeSort(s roster.Sort) string {
	if s.Key == "" {
		return "Sorted by: store order"
	}
	dir := "ascending"
	if s.Desc {
		dir = "descending"
	}
	return "Sorted by: " + string(s.Key) + ", " + dir
}

const printPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Attendance Roster</title>
<style>
  body { font-family: sans-serif; margin: 24px; color: #111; }
  h1 { font-size: 20px; margin-bottom: 4px; }
  .meta { color: #555; font-size: 12px; margin-bottom: 16px; }
  table { border-collapse: collapse; width: 100%; font-size: 13px; }
  th, td { border: 1px solid #999; padding: 6px 8px; text-align: left; }
  th { background: #eee; }
  .summary { margin-top: 12px; font-size: 13px; }
  @media print { body { margin: 0; } }
</style>
</head>
<body>
<h1>Attendance Roster</h1>
<div class="meta">Generated {{.GeneratedAt}} &middot; {{.SortLine}}</div>
<table>
<thead>
<tr><th>#</th><th>Full Name</th><th>Course</th><th>Batch</th><th>Shift</th><th>Contact No.</th><th>Present</th><th>Checked In At</th></tr>
</thead>
<tbody>
{{range .Rows}}<tr><td>{{.Index}}</td><td>{{.FullName}}</td><td>{{.Course}}</td><td>{{.Batch}}</td><td>{{.Shift}}</td><td>{{.ContactNo}}</td><td>{{.Present}}</td><td>{{.CheckedIn}}</td></tr>
{{end}}</tbody>
</table>
<div class="summary">Total: {{.Stats.Total}} &middot; Present: {{.Stats.Present}} &middot; Absent: {{.Stats.Absent}}</div>
</body>
</html>
`
