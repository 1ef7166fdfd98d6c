package audit

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Issue types the reconciliation rules produce.
const (
	IssueNormalSale          = "------"
	IssueUnexplainedIncrease = "Verificar inconsistência"
	IssueDateDivergence      = "Divergência de Data"
	IssueExpired             = "Produto Vencido"
	IssueMissingInCurrent    = "Ausência no Atual"
	IssueNewUnlisted         = "Produto Novo/Não Listado"
)

const (
	descNormalSale          = "Check-in Ok"
	descUnexplainedIncrease = "Quantidade aumentou mantendo a mesma validade."
	descDateDivergence      = "Data de validade diferente entre os relatórios."
	descExpired             = "A validade mais recente já passou."
	descMissingInCurrent    = "Produto presente no relatório antigo e ausente no atual."
	descNewUnlisted         = "Produto presente no relatório atual e ausente no antigo."
)

// DateLayout is the normalised validity date format.
const DateLayout = "02/01/2006"

// Observation is one product line of one report, as display strings.
type Observation struct {
	Quantity string
	Date     string
}

func (o Observation) present() bool {
	return !blank(o.Quantity) || !blank(o.Date)
}

// Classification is the outcome of the stock-vs-validity rules for one product.
type Classification struct {
	IssueType   string
	Severity    Severity
	Description string
}

// Classify applies the reconciliation rules to one product seen in the old and
// current report. ok is false when the values cannot be parsed, in which case
// the caller keeps whatever classification it already has.
func Classify(old, current Observation, today time.Time) (Classification, bool) {
	inOld, inCurrent := old.present(), current.present()
	switch {
	case !inOld && !inCurrent:
		return Classification{}, false
	case inOld && !inCurrent:
		return Classification{IssueMissingInCurrent, SeverityHigh, descMissingInCurrent}, true
	case !inOld && inCurrent:
		return Classification{IssueNewUnlisted, SeverityMedium, descNewUnlisted}, true
	}

	oldDate, ok := parseOptionalDate(old.Date)
	if !ok {
		return Classification{}, false
	}
	curDate, ok := parseOptionalDate(current.Date)
	if !ok {
		return Classification{}, false
	}
	if !oldDate.Equal(curDate) {
		newer := oldDate
		if curDate.After(newer) {
			newer = curDate
		}
		if newer.Before(day(today)) {
			return Classification{IssueExpired, SeverityHigh, descExpired}, true
		}
		return Classification{IssueDateDivergence, SeverityMedium, descDateDivergence}, true
	}

	oldQty, ok := ParseQuantity(old.Quantity)
	if !ok {
		return Classification{}, false
	}
	curQty, ok := ParseQuantity(current.Quantity)
	if !ok {
		return Classification{}, false
	}
	if oldQty.sep.conflicts(curQty.sep) {
		return Classification{}, false
	}
	cmp, ok := curQty.Compare(oldQty)
	if !ok {
		return Classification{}, false
	}
	if cmp > 0 {
		return Classification{IssueUnexplainedIncrease, SeverityMedium, descUnexplainedIncrease}, true
	}
	// a decrease is a sale; an unchanged count is treated the same way
	return Classification{IssueNormalSale, SeverityLow, descNormalSale}, true
}

// Reconcile re-derives the classification of every detail whose values parse
// and recomputes InconsistenciesFound. It returns how many details changed
// issue type or severity.
func Reconcile(r *AnalysisResult, today time.Time) int {
	if r == nil {
		return 0
	}
	changed, found := 0, 0
	for i := range r.Details {
		d := &r.Details[i]
		c, ok := Classify(
			Observation{Quantity: d.Report1Value, Date: d.Report1Date},
			Observation{Quantity: d.Report2Value, Date: d.Report2Date},
			today,
		)
		if ok {
			if d.IssueType != c.IssueType || d.Severity != c.Severity {
				changed++
			}
			d.IssueType = c.IssueType
			d.Severity = c.Severity
			if c.IssueType == IssueNormalSale || c.IssueType == IssueUnexplainedIncrease || strings.TrimSpace(d.Description) == "" {
				d.Description = c.Description
			}
		}
		if d.IssueType != IssueNormalSale {
			found++
		}
	}
	r.InconsistenciesFound = found
	return changed
}

// Quantity is a parsed stock amount. Mass units are normalised to grams.
type Quantity struct {
	Amount float64
	Unit   string

	sep separator
}

// separator records how the digits of a quantity were written.
type separator uint8

const (
	sepNone separator = iota
	sepGroupDot
	sepDecimalDot
	sepDecimalComma
)

// conflicts reports whether two quantities were written in notations that
// read "1.200" differently, so they cannot be compared.
func (s separator) conflicts(o separator) bool {
	return (s == sepGroupDot && o == sepDecimalDot) || (s == sepDecimalDot && o == sepGroupDot)
}

var (
	quantityRe = regexp.MustCompile(`^([0-9][0-9.,]*)\s*([[:alpha:]]*)\.?$`)
	groupDotRe = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
)

// ParseQuantity reads values such as "12", "12 un", "1kg", "1.200", "1000g" or
// "1,5 kg". A dot followed by groups of three digits is a thousands separator.
func ParseQuantity(s string) (Quantity, bool) {
	m := quantityRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Quantity{}, false
	}
	amount, sep, ok := parseAmount(m[1])
	if !ok {
		return Quantity{}, false
	}
	q := Quantity{Amount: amount, sep: sep}
	switch unit := strings.ToLower(m[2]); unit {
	case "kg", "kgs", "quilo", "quilos":
		q.Amount, q.Unit = amount*1000, "g"
	case "g", "gr", "grs", "grama", "gramas":
		q.Unit = "g"
	case "", "un", "und", "unid", "unidade", "unidades", "pc", "pcs":
	default:
		q.Unit = unit
	}
	return q, true
}

// Compare returns -1, 0 or 1; ok is false when the units differ.
func (q Quantity) Compare(other Quantity) (int, bool) {
	if q.Unit != other.Unit {
		return 0, false
	}
	switch d := q.Amount - other.Amount; {
	case math.Abs(d) < 1e-9:
		return 0, true
	case d < 0:
		return -1, true
	}
	return 1, true
}

func parseAmount(s string) (float64, separator, bool) {
	s = strings.TrimRight(s, ".,")
	sep := sepNone
	switch {
	case strings.Contains(s, ".") && strings.Contains(s, ","):
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
			sep = sepDecimalComma
		} else {
			s = strings.ReplaceAll(s, ",", "")
			sep = sepDecimalDot
		}
	case strings.Contains(s, ","):
		s = strings.Replace(s, ",", ".", 1)
		sep = sepDecimalComma
	case groupDotRe.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		sep = sepGroupDot
	case strings.Contains(s, "."):
		sep = sepDecimalDot
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, sepNone, false
	}
	return f, sep, true
}

var dateLayouts = []string{
	DateLayout,
	"2/1/2006",
	"02/01/06",
	"2006-01-02",
	"02-01-2006",
	"02.01.2006",
}

// ParseDate reads a validity date in any of the accepted layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseOptionalDate maps a blank date to the zero time.
func parseOptionalDate(s string) (time.Time, bool) {
	if blank(s) {
		return time.Time{}, true
	}
	return ParseDate(s)
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func blank(s string) bool {
	return strings.Trim(strings.TrimSpace(s), "-") == ""
}
