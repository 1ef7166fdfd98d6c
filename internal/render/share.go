package render

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
)

// Variant of share text.
type Variant string

const (
	// VariantPreliminary summarises the dashboard selection.
	VariantPreliminary Variant = "preliminary"
	// VariantField is the field checklist, no answers.
	VariantField Variant = "field"
	// VariantFinal carries the conclusions.
	VariantFinal Variant = "final"
)

// Valid reports whether v is known.
func (v Variant) Valid() bool {
	switch v {
	case VariantPreliminary, VariantField, VariantFinal:
		return true
	}
	return false
}

// NoPositive replaces an empty conclusion in the final share text.
const NoPositive = "Nenhuma positiva encontrada."

const (
	rule    = "━━━━━━━━━━━━━━━━━━"
	divider = "──────────────────"
	shareTo = "https://wa.me/?text="
)

// Share is a rendered message plus its deep link.
type Share struct {
	Variant Variant `json:"variant"`
	Text    string  `json:"text"`
	Link    string  `json:"link"`
	Items   int     `json:"items"`
}

// ShareText renders the message for a variant. Items follow result order.
func ShareText(v Variant, st session.State, opts Options) (Share, error) {
	if st.Result == nil {
		return Share{}, session.ErrNoResult
	}
	var (
		text  string
		items int
	)
	switch v {
	case VariantPreliminary:
		text, items = preliminary(st, opts)
	case VariantField, VariantFinal:
		text, items = investigation(st, opts, v == VariantFinal)
	default:
		return Share{}, fmt.Errorf("%w: share variant %q", ErrUnknownKind, v)
	}
	return Share{Variant: v, Text: text, Link: ShareLink(text), Items: items}, nil
}

// ShareLink percent-encodes text into the messaging compose link.
func ShareLink(text string) string {
	return shareTo + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

func preliminary(st session.State, opts Options) (string, int) {
	res := st.Result
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 *AUDITORIA PRELIMINAR - %s*\n", strings.ToUpper(opts.brand()))
	fmt.Fprintf(&b, "📅 Data: %s\n\n", day(opts.GeneratedAt))
	summary(&b, "RESUMO", "Itens", res)
	b.WriteString("🔍 *DETALHES:*\n\n")

	items := st.SelectedDetails(session.ScopeDashboard)
	blocks := make([]string, len(items))
	for i, d := range items {
		blocks[i] = fmt.Sprintf("📦 *%s*\n⚠️ %s\n📉 Antigo: %s (Val: %s)\n➡ Atual: %s (Val: %s)\n%s",
			d.ProductName, d.IssueType, d.Report1Value, d.Report1Date, d.Report2Value, d.Report2Date, divider)
	}
	b.WriteString(strings.Join(blocks, "\n\n"))
	return b.String(), len(items)
}

func investigation(st session.State, opts Options, final bool) (string, int) {
	res := st.Result
	var b strings.Builder
	if final {
		fmt.Fprintf(&b, "✅ *RELATÓRIO FINAL - %s*\n", strings.ToUpper(opts.brand()))
	} else {
		fmt.Fprintf(&b, "📋 *FICHA DE INVESTIGAÇÃO - %s*\n", strings.ToUpper(opts.brand()))
	}
	fmt.Fprintf(&b, "📅 Data: %s\n", day(opts.GeneratedAt))
	if opts.Author != "" {
		fmt.Fprintf(&b, "👨‍💻 Criador: %s\n", opts.Author)
	}
	b.WriteString("\n")
	summary(&b, "RESUMO GERAL", "Total de Itens", res)
	b.WriteString("🔍 *DETALHAMENTO DOS ITENS*\n\n")

	items := st.SelectedDetails(session.ScopeInvestigation)
	blocks := make([]string, len(items))
	for i, d := range items {
		blocks[i] = investigationItem(d, st.Investigation.Annotation(d.ID), opts, final)
	}
	b.WriteString(strings.Join(blocks, "\n\n"+divider+"\n\n"))
	fmt.Fprintf(&b, "\n\nGenerated by %s", opts.brand())
	return b.String(), len(items)
}

func investigationItem(d audit.InconsistencyDetail, ann session.Annotation, opts Options, final bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 *%s*\n", d.ProductName)
	fmt.Fprintf(&b, "⚠️ *Status:* %s\n", d.IssueType)
	fmt.Fprintf(&b, "📉 *Antigo:* %s (Val: %s)\n", d.Report1Value, d.Report1Date)
	fmt.Fprintf(&b, "➡ *Atual:* %s (Val: %s)\n", d.Report2Value, d.Report2Date)

	if notes := ann.SelectedNotes(); opts.IncludeNotes && len(notes) > 0 {
		compact := make([]string, len(notes))
		for i, n := range notes {
			compact[i] = n.Compact()
		}
		fmt.Fprintf(&b, "📝 *Obs:* %s\n", strings.Join(compact, ", "))
	}

	selected := ann.SelectedQuestions()
	if len(selected) == 0 {
		return strings.TrimSuffix(b.String(), "\n")
	}
	if final {
		reasons := make([]string, 0, len(selected))
		for _, q := range ann.Conclusion() {
			reasons = append(reasons, "✅ "+q.ShortFinding)
		}
		concl := NoPositive
		if len(reasons) > 0 {
			concl = strings.Join(reasons, ", ")
		}
		fmt.Fprintf(&b, "📋 *Conclusão:* %s", concl)
		return b.String()
	}
	if !opts.IncludeQuestions {
		return strings.TrimSuffix(b.String(), "\n")
	}
	b.WriteString("🕵️ *Verificar:*\n")
	for _, q := range selected {
		fmt.Fprintf(&b, "[ ] %s\n", q.Check)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func summary(b *strings.Builder, heading, itemsLabel string, res *audit.AnalysisResult) {
	fmt.Fprintf(b, "📊 *%s*\n%s\n", heading, rule)
	fmt.Fprintf(b, "📦 %s: %d\n", itemsLabel, res.TotalProductsChecked)
	fmt.Fprintf(b, "❗ Divergências: %d\n%s\n\n", res.InconsistenciesFound, rule)
}
