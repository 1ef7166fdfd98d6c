package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
)

// View names a renderable HTML region.
type View string

const (
	ViewDashboard     View = "dashboard"
	ViewInvestigation View = "investigation"
)

// Selector is the element id captured by snapshots.
func (v View) Selector() string {
	switch v {
	case ViewInvestigation:
		return "#investigation-content"
	}
	return "#dashboard-content"
}

// Valid reports whether v is known.
func (v View) Valid() bool {
	return v == ViewDashboard || v == ViewInvestigation
}

// EmptyState is shown on the dashboard when a result has no details.
const EmptyState = "Nenhuma inconsistência encontrada!"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/*.html"))

var summaryPolicy = bluemonday.UGCPolicy()

type noteRow struct {
	Text     string
	Selected bool
}

type questionRow struct {
	Prompt   string
	Selected bool
	Answer   string
}

type row struct {
	Index     int
	Detail    audit.InconsistencyDetail
	Severity  string
	Selected  bool
	Answered  bool
	Notes     []noteRow
	Questions []questionRow
}

type page struct {
	Brand     string
	Generated string
	Result    *audit.AnalysisResult
	Summary   template.HTML
	Rows      []row
	Selected  int
	Answered  int
	Total     int
	Submitted bool
	Empty     string
}

// HTML renders a view of the session as a standalone page.
func HTML(v View, st session.State, opts Options) ([]byte, error) {
	if st.Result == nil {
		return nil, session.ErrNoResult
	}
	if !v.Valid() {
		return nil, fmt.Errorf("%w: view %q", ErrUnknownKind, v)
	}

	scope := session.ScopeDashboard
	if v == ViewInvestigation {
		scope = session.ScopeInvestigation
	}
	sel := st.SelectionFor(scope)

	pg := page{
		Brand:     opts.brand(),
		Generated: stamp(opts.GeneratedAt),
		Result:    st.Result,
		Summary:   markdown(st.Result.Summary),
		Selected:  len(sel),
		Answered:  st.Investigation.Answered(),
		Total:     len(st.Result.Details),
		Submitted: st.Investigation.Submitted,
		Empty:     EmptyState,
	}
	for i, d := range st.Result.Details {
		ann := st.Investigation.Annotation(d.ID)
		r := row{
			Index:    i,
			Detail:   d,
			Severity: d.Severity.Label(),
			Selected: sel.Has(d.ID),
			Answered: ann.Answered(),
		}
		if v == ViewInvestigation {
			for _, n := range session.Notes {
				r.Notes = append(r.Notes, noteRow{Text: string(n), Selected: ann.Notes[n]})
			}
			for _, q := range session.Questions {
				qr := questionRow{Prompt: q.Prompt, Selected: ann.Questions[q.Key]}
				if val, ok := ann.Answer(q.Key); ok {
					qr.Answer = "NÃO"
					if val {
						qr.Answer = "SIM"
					}
				}
				r.Questions = append(r.Questions, qr)
			}
		}
		pg.Rows = append(pg.Rows, r)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(v)+".html", pg); err != nil {
		return nil, fmt.Errorf("render %s view: %w", v, err)
	}
	return buf.Bytes(), nil
}

// markdown renders the model's summary; anything beyond basic formatting is stripped.
func markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(strings.TrimSpace(summaryPolicy.Sanitize(buf.String())))
}

// Snapshot renders a view and captures its root element as PNG.
func Snapshot(ctx context.Context, snap Snapshotter, v View, st session.State, opts Options) (Document, error) {
	if snap == nil {
		return Document{}, fmt.Errorf("%w: snapshots are disabled", ErrSnapshot)
	}
	page, err := HTML(v, st, opts)
	if err != nil {
		return Document{}, err
	}
	png, err := snap.Capture(ctx, page, v.Selector())
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	scope := session.ScopeDashboard
	name := "Dashboard"
	if v == ViewInvestigation {
		scope = session.ScopeInvestigation
		name = "Investigacao"
	}
	return Document{
		Name:        fmt.Sprintf("%s_%s_%d.png", opts.brand(), name, unix(opts.GeneratedAt)),
		ContentType: "image/png",
		Body:        png,
		Items:       len(st.SelectionFor(scope)),
	}, nil
}
