package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DetailID identifies one discrepancy for the lifetime of a result.
type DetailID string

// Severity enum
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is one of the three accepted levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Label is the Portuguese badge text shown on the dashboard.
func (s Severity) Label() string {
	switch s {
	case SeverityLow:
		return "Baixa"
	case SeverityMedium:
		return "Média"
	case SeverityHigh:
		return "Crítica"
	}
	return string(s)
}

// InconsistencyDetail is one row of the comparison. Values and dates are display
// strings exactly as the analysis returned them.
type InconsistencyDetail struct {
	ID           DetailID `json:"id"`
	ProductName  string   `json:"productName"`
	IssueType    string   `json:"issueType"`
	Report1Value string   `json:"report1Value"`
	Report1Date  string   `json:"report1Date"`
	Report2Value string   `json:"report2Value"`
	Report2Date  string   `json:"report2Date"`
	Description  string   `json:"description"`
	Severity     Severity `json:"severity"`
}

// AnalysisResult is replaced wholesale on every analysis run.
type AnalysisResult struct {
	Summary              string                `json:"summary"`
	TotalProductsChecked int                   `json:"totalProductsChecked"`
	InconsistenciesFound int                   `json:"inconsistenciesFound"`
	Details              []InconsistencyDetail `json:"details"`
}

// Detail looks up a detail by id.
func (r *AnalysisResult) Detail(id DetailID) (InconsistencyDetail, bool) {
	if r == nil {
		return InconsistencyDetail{}, false
	}
	for _, d := range r.Details {
		if d.ID == id {
			return d, true
		}
	}
	return InconsistencyDetail{}, false
}

// IDs returns every detail id in result order.
func (r *AnalysisResult) IDs() []DetailID {
	if r == nil {
		return nil
	}
	out := make([]DetailID, len(r.Details))
	for i, d := range r.Details {
		out[i] = d.ID
	}
	return out
}

// Clone returns a deep copy.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Details = append([]InconsistencyDetail(nil), r.Details...)
	return &c
}

// AssignIDs gives every detail a content-derived id. Identical rows are
// disambiguated by a -N suffix in order of appearance, so ids never depend on
// the position of unrelated rows.
func AssignIDs(details []InconsistencyDetail) {
	seen := make(map[DetailID]int, len(details))
	for i := range details {
		base := contentID(details[i])
		seen[base]++
		id := base
		if n := seen[base]; n > 1 {
			id = DetailID(fmt.Sprintf("%s-%d", base, n))
		}
		details[i].ID = id
	}
}

func contentID(d InconsistencyDetail) DetailID {
	h := sha256.Sum256([]byte(strings.Join([]string{
		d.ProductName,
		d.IssueType,
		d.Report1Value,
		d.Report1Date,
		d.Report2Value,
		d.Report2Date,
		d.Description,
		string(d.Severity),
	}, "\x1f")))
	return DetailID(hex.EncodeToString(h[:])[:12])
}
