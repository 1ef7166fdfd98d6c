package audit

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrInvalidInput is the refusal raised before any call when a report is missing or blank.
var ErrInvalidInput = errors.New("invalid report input")

// ErrAnalysis is matched by every *AnalysisError.
var ErrAnalysis = errors.New("analysis failed")

// UserMessage is the single message shown for any failed analysis.
const UserMessage = "Ocorreu um erro ao processar os dados com a IA. Verifique se os relatórios estão legíveis."

// AnalysisError wraps any transport, parse or provider failure of an analysis call.
type AnalysisError struct {
	Op  string
	Err error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return "analysis " + e.Op + " failed"
	}
	return "analysis " + e.Op + ": " + e.Err.Error()
}

func (e *AnalysisError) Unwrap() error { return e.Err }

func (e *AnalysisError) Is(target error) bool { return target == ErrAnalysis }

// ErrRecordNotFound is returned by history lookups for unknown ids.
var ErrRecordNotFound = errors.New("analysis record not found")
