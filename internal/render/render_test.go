package render

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
)

var generated = time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

func init() { compress = false }

func opts() Options {
	o := DefaultOptions()
	o.GeneratedAt = generated
	return o
}

func stateWith(t *testing.T, details ...audit.InconsistencyDetail) session.State {
	t.Helper()
	res := &audit.AnalysisResult{
		Summary:              "Resumo **curto** <script>alert(1)</script>",
		TotalProductsChecked: 10,
		InconsistenciesFound: len(details),
		Details:              details,
	}
	audit.AssignIDs(res.Details)
	st, err := session.Reduce(session.New(), session.Action{Type: session.ActionAnalysisStarted})
	require.NoError(t, err)
	st, err = session.Reduce(st, session.Action{Type: session.ActionAnalysisSucceeded, Result: res})
	require.NoError(t, err)
	return st
}

func twoDetails() []audit.InconsistencyDetail {
	return []audit.InconsistencyDetail{
		{ProductName: "Arroz Tipo 1", IssueType: audit.IssueExpired, Report1Value: "10", Report1Date: "01/05/2025", Report2Value: "10", Report2Date: "01/06/2025", Description: "Vencido", Severity: audit.SeverityHigh},
		{ProductName: "Feijao Carioca", IssueType: audit.IssueUnexplainedIncrease, Report1Value: "4", Report1Date: "20/12/2025", Report2Value: "9", Report2Date: "20/12/2025", Description: "Aumentou", Severity: audit.SeverityMedium},
	}
}

func apply(t *testing.T, st session.State, actions ...session.Action) session.State {
	t.Helper()
	for _, a := range actions {
		var err error
		st, err = session.Reduce(st, a)
		require.NoError(t, err)
	}
	return st
}

func TestPDFsRefuseEmptySelection(t *testing.T) {
	st := stateWith(t, twoDetails()...)
	st = apply(t, st,
		session.Action{Type: session.ActionToggleAll},
		session.Action{Type: session.ActionToggleAll, Scope: session.ScopeInvestigation},
	)
	for _, kind := range []Kind{KindAuditPDF, KindFieldSheetPDF, KindFinalReportPDF} {
		doc, err := Render(context.Background(), kind, st, opts(), nil)
		assert.ErrorIs(t, err, ErrEmptySelection, kind)
		assert.Empty(t, doc.Body, kind)
	}
}

func TestAuditPDFItemsMatchSelection(t *testing.T) {
	st := stateWith(t, twoDetails()...)
	doc, err := AuditPDF(st, opts())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF-")))
	assert.Equal(t, 2, doc.Items)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Contains(t, string(doc.Body), "Arroz Tipo 1")

	st = apply(t, st, session.Action{Type: session.ActionToggleItem, ID: st.IDs()[1]})
	doc, err = AuditPDF(st, opts())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Items)
	assert.NotContains(t, string(doc.Body), "Feijao Carioca")
}

func TestFinalReportAfterDeselectingFirst(t *testing.T) {
	st := stateWith(t, twoDetails()...)
	st = apply(t, st, session.Action{Type: session.ActionToggleItem, Scope: session.ScopeInvestigation, ID: st.IDs()[0]})

	doc, err := FinalReportPDF(st, opts())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Items)
	body := string(doc.Body)
	assert.Contains(t, body, "Feijao Carioca")
	assert.NotContains(t, body, "Arroz Tipo 1")
	assert.Contains(t, body, NoJustification)
}

func TestFinalReportConclusion(t *testing.T) {
	st := stateWith(t, twoDetails()...)
	id := st.IDs()[1]
	yes := true
	st = apply(t, st,
		session.Action{Type: session.ActionToggleQuestion, ID: id, Question: session.WasMarkedDown},
		session.Action{Type: session.ActionToggleQuestion, ID: id, Question: session.WasSold},
		session.Action{Type: session.ActionSetAnswer, ID: id, Question: session.WasMarkedDown, Answer: &yes},
		session.Action{Type: session.ActionSetAnswer, ID: id, Question: session.WasSold, Answer: &yes},
	)
	assert.Equal(t, "Foi Vendido, Foi Rebaixado", Findings(st.Investigation.Annotation(id).Conclusion()))

	doc, err := FinalReportPDF(st, opts())
	require.NoError(t, err)
	assert.Contains(t, string(doc.Body), "Foi Vendido, Foi Rebaixado")
}

func TestFieldSheetUsesOriginalPosition(t *testing.T) {
	st := stateWith(t, twoDetails()...)
	id := st.IDs()[1]
	st = apply(t, st,
		session.Action{Type: session.ActionToggleItem, Scope: session.ScopeInvestigation, ID: st.IDs()[0]},
		session.Action{Type: session.ActionToggleNote, ID: id, Note: session.NoteNotRelated},
		session.Action{Type: session.ActionToggleQuestion, ID: id, Question: session.IsOnOffer},
	)
	doc, err := FieldSheetPDF(st, opts())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Items)
	body := string(doc.Body)
	assert.Contains(t, body, "2. Feijao Carioca")
	assert.Contains(t, body, "O produto esta em oferta?")
}

func TestFieldSheetWrapsLongNames(t *testing.T) {
	long := audit.InconsistencyDetail{
		ProductName:  "Biscoito Recheado Sabor Chocolate com Baunilha Embalagem Economica Familia Pacote Promocional Leve Mais Pague Menos Edicao Limitada Verao",
		IssueType:    audit.IssueUnexplainedIncrease,
		Report1Value: "4",
		Report1Date:  "20/12/2025",
		Report2Value: "9",
		Report2Date:  "20/12/2025",
		Severity:     audit.SeverityMedium,
	}
	st := stateWith(t, long)

	doc, err := FieldSheetPDF(st, opts())
	require.NoError(t, err)
	body := string(doc.Body)
	assert.Contains(t, body, "1. Biscoito Recheado")
	assert.Contains(t, body, "Verao")
	assert.Contains(t, body, "Antigo: 4 (Val: 20/12/2025)")
}

func TestShareFinalText(t *testing.T) {
	st := stateWith(t, twoDetails()...)
	first, second := st.IDs()[0], st.IDs()[1]
	yes := true
	st = apply(t, st,
		session.Action{Type: session.ActionToggleAllQuestions, ID: first},
		session.Action{Type: session.ActionSetAnswer, ID: first, Question: session.WasRemovedFromSalesArea, Answer: &yes},
		session.Action{Type: session.ActionSetAnswer, ID: first, Question: session.InSalesArea, Answer: &yes},
		session.Action{Type: session.ActionToggleQuestion, ID: second, Question: session.HasExpired},
		session.Action{Type: session.ActionToggleNote, ID: second, Note: session.NoteDateWeight},
		session.Action{Type: session.ActionToggleNote, ID: second, Note: session.NoteWeight},
	)

	sh, err := ShareText(VariantFinal, st, opts())
	require.NoError(t, err)
	assert.Equal(t, 2, sh.Items)
	assert.Contains(t, sh.Text, "📋 *Conclusão:* ✅ Está na Loja, ✅ Retirado da Área")
	assert.Contains(t, sh.Text, "📋 *Conclusão:* "+NoPositive)
	assert.Contains(t, sh.Text, "📝 *Obs:* Inconsistência Peso (KG), Inconsistência Data e Peso")
	assert.Less(t, strings.Index(sh.Text, "Arroz Tipo 1"), strings.Index(sh.Text, "Feijao Carioca"))
	assert.True(t, strings.HasPrefix(sh.Link, "https://wa.me/?text="))
	assert.NotContains(t, sh.Link, "+")
	assert.Contains(t, sh.Link, "%20")
}

func TestShareFieldChecklist(t *testing.T) {
	st := stateWith(t, twoDetails()...)
	id := st.IDs()[0]
	yes := true
	st = apply(t, st,
		session.Action{Type: session.ActionToggleQuestion, ID: id, Question: session.WasSold},
		session.Action{Type: session.ActionSetAnswer, ID: id, Question: session.WasSold, Answer: &yes},
	)
	sh, err := ShareText(VariantField, st, opts())
	require.NoError(t, err)
	assert.Contains(t, sh.Text, "🕵️ *Verificar:*\n[ ] Vendido?")
	assert.NotContains(t, sh.Text, "Conclusão")
	assert.True(t, strings.HasSuffix(sh.Text, "Generated by ModalPDV"))

	_, err = ShareText("sms", st, opts())
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSharePreliminaryFollowsDashboardSelection(t *testing.T) {
	st := stateWith(t, twoDetails()...)
	st = apply(t, st, session.Action{Type: session.ActionToggleItem, ID: st.IDs()[0]})
	sh, err := ShareText(VariantPreliminary, st, opts())
	require.NoError(t, err)
	assert.Equal(t, 1, sh.Items)
	assert.Contains(t, sh.Text, "🚨 *AUDITORIA PRELIMINAR - MODALPDV*")
	assert.Contains(t, sh.Text, "📅 Data: 15/06/2025")
	assert.NotContains(t, sh.Text, "Arroz Tipo 1")
}

func TestDashboardEmptyState(t *testing.T) {
	st := stateWith(t)
	page, err := HTML(ViewDashboard, st, opts())
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, `id="dashboard-content"`)
	assert.Contains(t, html, EmptyState)
	assert.NotContains(t, html, "<table>")
	assert.NotContains(t, html, "<script>alert")
	assert.Contains(t, html, "<strong>curto</strong>")
}

func TestInvestigationView(t *testing.T) {
	st := stateWith(t, twoDetails()...)
	id := st.IDs()[0]
	no := false
	st = apply(t, st, session.Action{Type: session.ActionSetAnswer, ID: id, Question: session.WasSold, Answer: &no})
	page, err := HTML(ViewInvestigation, st, opts())
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, `id="investigation-content"`)
	assert.Contains(t, html, "NÃO")
	assert.Contains(t, html, "Respondido: <strong>1</strong> / 2")
}

type fakeSnap struct {
	selector string
	err      error
}

func (f *fakeSnap) Capture(_ context.Context, html []byte, selector string) ([]byte, error) {
	f.selector = selector
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\x89PNG"), nil
}

func TestSnapshot(t *testing.T) {
	st := stateWith(t, twoDetails()...)
	snap := &fakeSnap{}
	doc, err := Render(context.Background(), KindInvestigationPNG, st, opts(), snap)
	require.NoError(t, err)
	assert.Equal(t, "#investigation-content", snap.selector)
	assert.Equal(t, "image/png", doc.ContentType)

	_, err = Render(context.Background(), KindDashboardPNG, st, opts(), &fakeSnap{err: errors.New("chrome crashed")})
	assert.ErrorIs(t, err, ErrSnapshot)

	_, err = Render(context.Background(), KindDashboardPNG, st, opts(), nil)
	assert.ErrorIs(t, err, ErrSnapshot)
}

func TestWinRunes(t *testing.T) {
	s := winRunes("Relatório • 😀")
	for _, r := range s {
		assert.LessOrEqual(t, r, rune(0xff))
	}
	assert.Equal(t, "Relat\xf3rio \x95 ?", winBytes(s))
}
