package render

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/stockaudit/internal/domain/session"
)

// NoJustification is printed when an item has no conclusion.
const NoJustification = "Nenhuma justificativa selecionada."

// FieldSheetPDF renders one checklist box per selected investigation item.
// Answers are never printed; questions are blank boxes to tick in the field.
func FieldSheetPDF(st session.State, opts Options) (Document, error) {
	sel := st.Investigation.Selection
	ids := st.IDs()
	if len(sel.Ordered(ids)) == 0 {
		return Document{}, ErrEmptySelection
	}

	title := opts.brand() + " - Questionário de Investigação"
	p := newPDF(title, opts)
	y := p.header(title, "Data", opts)

	p.SetFont("Helvetica", "", 11)
	p.text(margin, y+2, fmt.Sprintf("Instruções: Utilize este questionário para verificar %d itens selecionados.", len(sel.Ordered(ids))))
	y += 8
	p.SetLineWidth(0.5)
	p.Line(margin, y, pageW-margin, y)
	p.SetLineWidth(0.2)
	y += 10

	items := 0
	for idx, d := range st.Result.Details {
		if !sel.Has(d.ID) {
			continue
		}
		items++
		ann := st.Investigation.Annotation(d.ID)
		var notes []session.Note
		if opts.IncludeNotes {
			notes = ann.SelectedNotes()
		}
		var questions []session.Question
		if opts.IncludeQuestions {
			questions = ann.SelectedQuestions()
		}

		p.SetFont("Helvetica", "B", 12)
		name := p.split(fmt.Sprintf("%d. %s", idx+1, d.ProductName), 110)
		extra := float64(len(name)-1) * 5

		boxH := 27.0 + extra
		if len(notes) > 0 {
			boxH += float64(len(notes))*7 + 2
		}
		if len(questions) > 0 {
			boxH += float64(len(questions)) * 7
		}
		y = p.ensure(y, boxH)

		p.SetDrawColor(220, 220, 220)
		p.SetFillColor(252, 252, 252)
		p.Rect(margin, y, pageW-2*margin, boxH, "FD")

		by := y + 8
		p.SetFont("Helvetica", "B", 12)
		p.SetTextColor(0, 0, 0)
		p.lines(18, by, 5, name)

		p.SetFont("Helvetica", "B", 10)
		p.SetTextColor(200, 0, 0)
		p.textRight(pageW-20, by, "Motivo: "+d.IssueType)

		by += 8 + extra
		p.SetFont("Helvetica", "", 10)
		p.SetTextColor(0, 0, 0)
		p.text(18, by, fmt.Sprintf("Antigo: %s (Val: %s)", d.Report1Value, d.Report1Date))
		p.text(98, by, fmt.Sprintf("Atual: %s (Val: %s)", d.Report2Value, d.Report2Date))
		by += 8

		const checkX = 22.0
		if len(notes) > 0 {
			p.SetFont("Helvetica", "B", 9)
			for _, n := range notes {
				p.checkbox(checkX, by, true)
				p.text(checkX+6, by, n.Compact())
				by += 7
			}
			by += 2
		}
		if len(questions) > 0 {
			p.SetFont("Helvetica", "", 10)
			for _, q := range questions {
				p.checkbox(checkX, by, false)
				p.text(checkX+6, by, q.Prompt)
				by += 7
			}
		}
		y += boxH + 5
	}

	body, err := p.bytes()
	if err != nil {
		return Document{}, fmt.Errorf("render field sheet: %w", err)
	}
	return Document{
		Name:        "Questionario_Investigacao_" + opts.brand() + ".pdf",
		ContentType: "application/pdf",
		Body:        body,
		Items:       items,
	}, nil
}

// FinalReportPDF renders one card per selected item with its conclusion line.
func FinalReportPDF(st session.State, opts Options) (Document, error) {
	items := st.SelectedDetails(session.ScopeInvestigation)
	if len(items) == 0 {
		return Document{}, ErrEmptySelection
	}

	title := opts.brand() + " - Relatório Final de Investigação"
	p := newPDF(title, opts)
	y := p.header(title, "Concluído em", opts) + 1

	for _, d := range items {
		ann := st.Investigation.Annotation(d.ID)
		var notes []session.Note
		if opts.IncludeNotes {
			notes = ann.SelectedNotes()
		}

		p.SetFont("Helvetica", "", 10)
		conclusion := NoJustification
		if c := Findings(ann.Conclusion()); c != "" {
			conclusion = c
		}
		concl := p.split(conclusion, pageW-2*margin-30)
		values := p.split(fmt.Sprintf("Antigo: %s (Val: %s) vs Atual: %s (Val: %s)",
			d.Report1Value, d.Report1Date, d.Report2Value, d.Report2Date), pageW-2*margin-8)

		h := 22 + float64(len(values))*5 + float64(len(concl))*5
		if len(notes) > 0 {
			h += float64(len(notes))*5 + 2
		}
		y = p.ensure(y, h)

		p.SetDrawColor(200, 200, 200)
		p.SetLineWidth(0.1)
		p.Rect(margin, y, pageW-2*margin, h, "D")

		p.SetFont("Helvetica", "B", 11)
		p.SetTextColor(0, 0, 0)
		p.text(18, y+8, d.ProductName)

		p.SetFont("Helvetica", "", 10)
		p.SetTextColor(100, 100, 100)
		p.text(18, y+14, "Motivo: "+d.IssueType)
		ty := p.lines(18, y+20, 5, values) + 3

		if len(notes) > 0 {
			p.SetTextColor(0, 0, 0)
			p.SetFont("Helvetica", "B", 9)
			for _, n := range notes {
				p.text(18, ty, "• "+n.Compact())
				ty += 5
			}
			p.SetFont("Helvetica", "", 10)
			ty += 2
		}

		p.SetTextColor(0, 0, 0)
		p.text(18, ty, "Conclusão:")
		if conclusion == NoJustification {
			p.SetTextColor(150, 150, 150)
		} else {
			p.SetTextColor(0, 100, 0)
		}
		p.lines(40, ty, 5, concl)
		p.SetTextColor(0, 0, 0)

		y += h + 5
	}

	body, err := p.bytes()
	if err != nil {
		return Document{}, fmt.Errorf("render final report: %w", err)
	}
	return Document{
		Name:        "Relatorio_Final_Investigacao_" + opts.brand() + ".pdf",
		ContentType: "application/pdf",
		Body:        body,
		Items:       len(items),
	}, nil
}

// Findings joins conclusion labels as printed in the final report.
func Findings(qs []session.Question) string {
	labels := make([]string, len(qs))
	for i, q := range qs {
		labels[i] = q.Finding
	}
	return strings.Join(labels, ", ")
}
