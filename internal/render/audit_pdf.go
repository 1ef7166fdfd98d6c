package render

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
)

var (
	auditColumns = []string{"Produto", "Tipo de Erro", "Antigo (Qtd/Val)", "Atual (Qtd/Val)", "Sev.", "Descrição"}
	auditWidths  = []float64{40, 28, 24, 24, 14, 52}
)

const (
	cellPad    = 1.5
	cellLine   = 3.6
	tableFont  = 8.0
	headerFill = 37
)

// AuditPDF renders the dashboard selection as a summary box plus a grid table.
func AuditPDF(st session.State, opts Options) (Document, error) {
	items := st.SelectedDetails(session.ScopeDashboard)
	if len(items) == 0 {
		return Document{}, ErrEmptySelection
	}
	res := st.Result

	title := "Relatório de Auditoria " + opts.brand()
	p := newPDF(title, opts)
	p.SetFont("Helvetica", "", 20)
	p.SetTextColor(40, 40, 40)
	p.text(margin, 22, title)

	p.SetFont("Helvetica", "", 10)
	p.SetTextColor(100, 100, 100)
	stampLine := "Data: " + stamp(opts.GeneratedAt)
	if opts.Author != "" {
		stampLine = "Criador: " + opts.Author + " | " + stampLine
	}
	p.text(margin, 28, stampLine)

	// summary box grows with the wrapped summary
	p.SetFont("Helvetica", "", 9)
	summary := p.split(res.Summary, 170)
	boxH := 21 + float64(len(summary))*4
	p.SetDrawColor(200, 200, 200)
	p.SetFillColor(248, 250, 252)
	p.Rect(margin, 35, content, boxH, "FD")

	p.SetFont("Helvetica", "", 12)
	p.SetTextColor(0, 0, 0)
	p.text(20, 42, "Resumo Executivo")
	p.SetFont("Helvetica", "", 10)
	p.text(20, 50, fmt.Sprintf("Produtos Verificados: %d", res.TotalProductsChecked))
	p.text(100, 50, fmt.Sprintf("Itens neste Relatório: %d", len(items)))
	p.SetFont("Helvetica", "", 9)
	p.SetTextColor(80, 80, 80)
	p.lines(20, 56, 4, summary)

	y := 35 + boxH + 8
	y = auditHeader(p, y)
	p.SetFont("Helvetica", "", tableFont)
	for _, d := range items {
		y = auditRow(p, y, d)
	}

	body, err := p.bytes()
	if err != nil {
		return Document{}, fmt.Errorf("render audit pdf: %w", err)
	}
	return Document{
		Name:        "Relatorio_Auditoria_" + opts.brand() + ".pdf",
		ContentType: "application/pdf",
		Body:        body,
		Items:       len(items),
	}, nil
}

func auditHeader(p pdfDoc, y float64) float64 {
	h := cellLine + 2*cellPad + 1
	p.SetFont("Helvetica", "B", tableFont)
	p.SetFillColor(headerFill, 99, 235)
	p.SetDrawColor(200, 200, 200)
	p.SetTextColor(255, 255, 255)
	x := margin
	for i, col := range auditColumns {
		p.Rect(x, y, auditWidths[i], h, "FD")
		p.text(x+cellPad, y+cellPad+cellLine, col)
		x += auditWidths[i]
	}
	p.SetTextColor(0, 0, 0)
	p.SetFont("Helvetica", "", tableFont)
	return y + h
}

func auditRow(p pdfDoc, y float64, d audit.InconsistencyDetail) float64 {
	cells := []string{
		d.ProductName,
		d.IssueType,
		d.Report1Value + "\n" + d.Report1Date,
		d.Report2Value + "\n" + d.Report2Date,
		strings.ToUpper(string(d.Severity)),
		d.Description,
	}
	wrapped := make([][]string, len(cells))
	rows := 1
	for i, c := range cells {
		wrapped[i] = p.split(c, auditWidths[i]-2*cellPad)
		if len(wrapped[i]) > rows {
			rows = len(wrapped[i])
		}
	}
	h := float64(rows)*cellLine + 2*cellPad

	if y+h > bottom {
		p.AddPage()
		y = auditHeader(p, 20)
	}

	p.SetDrawColor(200, 200, 200)
	x := margin
	for i := range cells {
		p.Rect(x, y, auditWidths[i], h, "D")
		// vertically centred like the dashboard table
		top := y + cellPad + (h-2*cellPad-float64(len(wrapped[i]))*cellLine)/2 + cellLine - 0.8
		p.lines(x+cellPad, top, cellLine, wrapped[i])
		x += auditWidths[i]
	}
	return y + h
}
