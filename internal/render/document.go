package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/stockaudit/internal/domain/session"
)

var (
	// ErrEmptySelection: an export was requested with nothing selected.
	ErrEmptySelection = errors.New("selecione pelo menos um item para gerar o documento")
	// ErrSnapshot: the image capture failed.
	ErrSnapshot = errors.New("snapshot failed")
	// ErrUnknownKind: no renderer for the requested artifact.
	ErrUnknownKind = errors.New("unknown export kind")
)

// SnapshotMessage is the user-facing text for ErrSnapshot.
const SnapshotMessage = "Erro ao gerar a imagem."

// Document is one rendered artifact.
type Document struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"-"`
	// Items is the number of details in the artifact; always the selection size.
	Items int    `json:"items"`
	URL   string `json:"url,omitempty"`
}

// Options tune every renderer.
type Options struct {
	Brand            string
	Author           string
	IncludeNotes     bool
	IncludeQuestions bool
	GeneratedAt      time.Time
}

// DefaultOptions includes notes and questions.
func DefaultOptions() Options {
	return Options{Brand: "ModalPDV", IncludeNotes: true, IncludeQuestions: true}
}

func (o Options) brand() string {
	if o.Brand == "" {
		return "ModalPDV"
	}
	return o.Brand
}

// Kind names an exportable artifact.
type Kind string

const (
	KindAuditPDF         Kind = "audit.pdf"
	KindFieldSheetPDF    Kind = "field-sheet.pdf"
	KindFinalReportPDF   Kind = "final-report.pdf"
	KindDashboardPNG     Kind = "dashboard.png"
	KindInvestigationPNG Kind = "investigation.png"
)

// Kinds lists every artifact in display order.
var Kinds = []Kind{KindAuditPDF, KindFieldSheetPDF, KindFinalReportPDF, KindDashboardPNG, KindInvestigationPNG}

// IsImage reports whether the kind needs a Snapshotter.
func (k Kind) IsImage() bool {
	return k == KindDashboardPNG || k == KindInvestigationPNG
}

// Snapshotter captures an element of an HTML page as PNG.
type Snapshotter interface {
	Capture(ctx context.Context, html []byte, selector string) ([]byte, error)
}

// Render produces the artifact of the given kind from a session state. snap may
// be nil when image kinds are not needed.
func Render(ctx context.Context, kind Kind, st session.State, opts Options, snap Snapshotter) (Document, error) {
	if st.Result == nil {
		return Document{}, session.ErrNoResult
	}
	switch kind {
	case KindAuditPDF:
		return AuditPDF(st, opts)
	case KindFieldSheetPDF:
		return FieldSheetPDF(st, opts)
	case KindFinalReportPDF:
		return FinalReportPDF(st, opts)
	case KindDashboardPNG:
		return Snapshot(ctx, snap, ViewDashboard, st, opts)
	case KindInvestigationPNG:
		return Snapshot(ctx, snap, ViewInvestigation, st, opts)
	}
	return Document{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("02/01/2006 15:04:05")
}

func day(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("02/01/2006")
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}
