package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
)

// ErrMalformed is returned for responses that are not valid result JSON.
var ErrMalformed = errors.New("malformed analysis response")

type wireResult struct {
	Summary              *string       `json:"summary"`
	TotalProductsChecked *float64      `json:"totalProductsChecked"`
	InconsistenciesFound *float64      `json:"inconsistenciesFound"`
	Details              *[]wireDetail `json:"details"`
}

type wireDetail struct {
	ProductName  *string `json:"productName"`
	IssueType    *string `json:"issueType"`
	Report1Value *string `json:"report1Value"`
	Report1Date  *string `json:"report1Date"`
	Report2Value *string `json:"report2Value"`
	Report2Date  *string `json:"report2Date"`
	Description  *string `json:"description"`
	Severity     *string `json:"severity"`
}

// Parse decodes a raw model response into a result. Every required field must
// be present; counts must be non-negative integers and severities one of the
// three levels. IDs are not assigned here.
func Parse(raw string) (*audit.AnalysisResult, error) {
	body := strings.TrimSpace(stripFence(raw))
	if body == "" {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	var w wireResult
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformed)
	}

	switch {
	case w.Summary == nil:
		return nil, missing("summary")
	case w.TotalProductsChecked == nil:
		return nil, missing("totalProductsChecked")
	case w.InconsistenciesFound == nil:
		return nil, missing("inconsistenciesFound")
	case w.Details == nil:
		return nil, missing("details")
	}

	total, err := count("totalProductsChecked", *w.TotalProductsChecked)
	if err != nil {
		return nil, err
	}
	found, err := count("inconsistenciesFound", *w.InconsistenciesFound)
	if err != nil {
		return nil, err
	}

	res := &audit.AnalysisResult{
		Summary:              *w.Summary,
		TotalProductsChecked: total,
		InconsistenciesFound: found,
		Details:              make([]audit.InconsistencyDetail, 0, len(*w.Details)),
	}
	for i, d := range *w.Details {
		det, err := d.detail()
		if err != nil {
			return nil, fmt.Errorf("details[%d]: %w", i, err)
		}
		res.Details = append(res.Details, det)
	}
	return res, nil
}

func (d wireDetail) detail() (audit.InconsistencyDetail, error) {
	fields := []struct {
		name string
		v    *string
	}{
		{"productName", d.ProductName},
		{"issueType", d.IssueType},
		{"report1Value", d.Report1Value},
		{"report1Date", d.Report1Date},
		{"report2Value", d.Report2Value},
		{"report2Date", d.Report2Date},
		{"description", d.Description},
		{"severity", d.Severity},
	}
	for _, f := range fields {
		if f.v == nil {
			return audit.InconsistencyDetail{}, missing(f.name)
		}
	}
	sev := audit.Severity(strings.ToLower(strings.TrimSpace(*d.Severity)))
	if !sev.Valid() {
		return audit.InconsistencyDetail{}, fmt.Errorf("%w: severity %q", ErrMalformed, *d.Severity)
	}
	return audit.InconsistencyDetail{
		ProductName:  *d.ProductName,
		IssueType:    *d.IssueType,
		Report1Value: *d.Report1Value,
		Report1Date:  *d.Report1Date,
		Report2Value: *d.Report2Value,
		Report2Date:  *d.Report2Date,
		Description:  *d.Description,
		Severity:     sev,
	}, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: missing %s", ErrMalformed, field)
}

func count(field string, v float64) (int, error) {
	if v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %v", ErrMalformed, field, v)
	}
	return int(v), nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
