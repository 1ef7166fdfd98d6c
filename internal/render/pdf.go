package render

import (
	"bytes"
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	pageW   = 210.0
	pageH   = 297.0
	margin  = 14.0
	bottom  = 280.0
	content = pageW - 2*margin
)

// compress is switched off by tests so drawn text is searchable.
var compress = true

type pdfDoc struct {
	*fpdf.Fpdf
}

func newPDF(title string, opts Options) pdfDoc {
	f := fpdf.New("P", "mm", "A4", "")
	f.SetCompression(compress)
	f.SetAutoPageBreak(false, 0)
	f.SetMargins(margin, margin, margin)
	f.SetTitle(title, true)
	f.SetCreator(opts.brand(), true)
	if opts.Author != "" {
		f.SetAuthor(opts.Author, true)
	}
	if !opts.GeneratedAt.IsZero() {
		f.SetCreationDate(opts.GeneratedAt)
	}
	f.AddPage()
	return pdfDoc{f}
}

// header draws title and the author/date line; returns the next y.
func (p pdfDoc) header(title, dateLabel string, opts Options) float64 {
	p.SetFont("Helvetica", "", 18)
	p.SetTextColor(40, 40, 40)
	p.text(margin, 20, title)

	p.SetFont("Helvetica", "", 10)
	p.SetTextColor(100, 100, 100)
	line := dateLabel + ": " + stamp(opts.GeneratedAt)
	if opts.Author != "" {
		line = "Criador: " + opts.Author + " | " + line
	}
	p.text(margin, 28, line)
	p.SetTextColor(0, 0, 0)
	return 36
}

func (p pdfDoc) text(x, y float64, s string) {
	p.Text(x, y, winBytes(winRunes(s)))
}

// textRight draws s ending at x.
func (p pdfDoc) textRight(x, y float64, s string) {
	b := winBytes(winRunes(s))
	p.Text(x-p.GetStringWidth(b), y, b)
}

// split wraps s to width w with the current font.
func (p pdfDoc) split(s string, w float64) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{""}
	}
	return p.SplitText(winRunes(s), w)
}

// lines draws already split lines.
func (p pdfDoc) lines(x, y, lh float64, ls []string) float64 {
	for _, l := range ls {
		p.Text(x, y, winBytes(l))
		y += lh
	}
	return y
}

func (p pdfDoc) checkbox(x, y float64, crossed bool) {
	p.SetDrawColor(0, 0, 0)
	p.SetLineWidth(0.2)
	p.Rect(x, y-3, 4, 4, "D")
	if crossed {
		p.SetDrawColor(200, 0, 0)
		p.SetLineWidth(0.5)
		p.Line(x, y-3, x+4, y+1)
		p.Line(x+4, y-3, x, y+1)
		p.SetLineWidth(0.2)
	}
}

// ensure starts a new page when h does not fit below y.
func (p pdfDoc) ensure(y, h float64) float64 {
	if y+h > bottom {
		p.AddPage()
		return 20
	}
	return y
}

func (p pdfDoc) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// winRunes re-encodes s as Windows-1252 and returns one rune per byte, so the
// core-font width tables (indexed 0..255) can measure it.
func winRunes(s string) string {
	enc, err := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).String(s)
	if err != nil {
		enc = s
	}
	out := make([]rune, 0, len(enc))
	for i := 0; i < len(enc); i++ {
		c := enc[i]
		if c == 0x1a {
			c = '?'
		}
		out = append(out, rune(c))
	}
	return string(out)
}

// winBytes is the inverse of the rune-per-byte form: the raw bytes fpdf writes.
func winBytes(s string) string {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			r = '?'
		}
		b = append(b, byte(r))
	}
	return string(b)
}
