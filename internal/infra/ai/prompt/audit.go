package prompt

import (
	"time"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
)

// Instructions is sent verbatim ahead of both reports on every call.
const Instructions = `
Atue como um Auditor de Prevenção de Perdas e Controle de Estoque.
Sua missão é realizar o "Cruzamento de Estoque e Validade".

DEFINIÇÃO DOS DADOS:
- RELATÓRIO 1 (ANTIGO): relatório base, anterior ou do sistema antigo.
- RELATÓRIO 2 (ATUAL): relatório recente, auditoria física ou contagem atual.

TAREFA:
Compare o Relatório 2 (ATUAL) contra o Relatório 1 (ANTIGO) e liste cada produto com a sua situação.

REGRAS DE QUANTIDADE E DATA:

1. VENDA NORMAL (mesma data de validade, quantidade no ATUAL menor ou igual à do ANTIGO)
   - 'issueType' EXATAMENTE "------"
   - 'description' EXATAMENTE "Check-in Ok"
   - 'severity': "low"

2. AUMENTO INJUSTIFICADO (mesma data de validade, quantidade no ATUAL maior que no ANTIGO)
   - 'issueType' EXATAMENTE "Verificar inconsistência"
   - 'description' EXATAMENTE "Quantidade aumentou mantendo a mesma validade."
   - 'severity': "medium"

3. DIVERGÊNCIA DE DATA (datas de validade diferentes)
   - 'issueType': "Produto Vencido" se a data mais recente já passou (comparada com a data de hoje), 'severity': "high"
   - caso contrário 'issueType': "Divergência de Data", 'severity': "medium"

4. AUSÊNCIA OU NOVO
   - Produto no ANTIGO e não no ATUAL: 'issueType' "Ausência no Atual", 'severity': "high"
   - Produto no ATUAL e não no ANTIGO: 'issueType' "Produto Novo/Não Listado", 'severity': "medium"

OUTRAS INSTRUÇÕES:
- Extraia a data de validade de AMBOS os relatórios e normalize para DD/MM/AAAA.
- Quando o produto não aparece em um dos relatórios use "-" no valor e na data.
- Normalização de unidade: "1kg", "1.000kg" e "1000g" são a mesma quantidade.

OUTPUT:
Retorne APENAS um JSON válido seguindo o schema fornecido.
`

// Report delimiters placed around the two inputs.
const (
	OldHeader = "\n--- INICIO RELATÓRIO 1 (ANTIGO) ---\n"
	Separator = "\n--- FIM RELATÓRIO 1 --- INICIO RELATÓRIO 2 (ATUAL) ---\n"
)

// DefaultGeminiModel is used when ai.model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// DefaultOpenAIModel is used when ai.model is empty and the provider is openai.
const DefaultOpenAIModel = "gpt-4o-mini"

// Schema descriptions, shared by every provider schema.
const (
	DescSummary              = "Resumo executivo focado nas divergências encontradas entre o relatório antigo e o atual."
	DescTotalProductsChecked = "Total de SKUs/Produtos únicos analisados."
	DescInconsistenciesFound = "Contagem total de divergências, excluindo os casos '------' (Check-in Ok)."
	DescIssueType            = "Tipo do erro. Use '------' para venda normal ou 'Verificar inconsistência' se a quantidade aumentou com a mesma data."
	DescReport1Value         = "Quantidade no Antigo"
	DescReport1Date          = "Data de Validade no Antigo (DD/MM/AAAA) ou '-'"
	DescReport2Value         = "Quantidade no Atual"
	DescReport2Date          = "Data de Validade no Atual (DD/MM/AAAA) ou '-'"
	DescDescription          = "Explicação curta."
)

// SchemaName labels the structured output for providers that need one.
const SchemaName = "analysis_result"

// ResultRequired and DetailRequired list the mandatory response fields.
var (
	ResultRequired = []string{"summary", "totalProductsChecked", "inconsistenciesFound", "details"}
	DetailRequired = []string{"productName", "issueType", "report1Value", "report1Date", "report2Value", "report2Date", "description", "severity"}
	SeverityEnum   = []string{string(audit.SeverityLow), string(audit.SeverityMedium), string(audit.SeverityHigh)}
)

// Segment is one piece of the request body: either literal text or a report.
type Segment struct {
	Text   string
	Report *audit.ReportInput
}

// Segments builds the ordered request body: instructions, today's date,
// report 1, separator, report 2.
func Segments(old, current audit.ReportInput, today time.Time) []Segment {
	return []Segment{
		{Text: Instructions},
		{Text: "Data de hoje: " + today.Format(audit.DateLayout) + "\n"},
		{Text: OldHeader},
		reportSegment(old),
		{Text: Separator},
		reportSegment(current),
	}
}

func reportSegment(in audit.ReportInput) Segment {
	if in.Kind == audit.InputText {
		return Segment{Text: in.Content}
	}
	r := in
	return Segment{Report: &r}
}
