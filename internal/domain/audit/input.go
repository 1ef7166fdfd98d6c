package audit

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// InputKind enum
type InputKind string

const (
	InputFile InputKind = "file"
	InputText InputKind = "text"
)

// Mode is the pair mode chosen by the user.
type Mode string

const (
	ModeFiles Mode = "files"
	ModeText  Mode = "text"
)

// ReportInput is one normalised report. Data travels base64-encoded in JSON.
type ReportInput struct {
	Kind     InputKind `json:"type"`
	Name     string    `json:"name,omitempty"`
	MIMEType string    `json:"mimeType,omitempty"`
	Data     []byte    `json:"base64,omitempty"`
	Content  string    `json:"content,omitempty"`
}

// NewFileInput wraps uploaded bytes, resolving the MIME type from the declared
// type, the file extension or the content.
func NewFileInput(name, declaredType string, data []byte) ReportInput {
	return ReportInput{
		Kind:     InputFile,
		Name:     name,
		MIMEType: DetectMIME(name, declaredType, data),
		Data:     data,
	}
}

// NewTextInput wraps pasted report text.
func NewTextInput(content string) ReportInput {
	return ReportInput{Kind: InputText, Content: content}
}

// Base64 returns the payload as standard base64.
func (in ReportInput) Base64() string {
	return base64.StdEncoding.EncodeToString(in.Data)
}

// Empty reports whether the input carries nothing usable.
func (in ReportInput) Empty() bool {
	switch in.Kind {
	case InputFile:
		return len(in.Data) == 0
	case InputText:
		return strings.TrimSpace(in.Content) == ""
	}
	return true
}

// Describe is a short log/history descriptor that never includes the payload.
func (in ReportInput) Describe() string {
	if in.Kind == InputFile {
		return fmt.Sprintf("file:%s:%s:%d", in.Name, in.MIMEType, len(in.Data))
	}
	return fmt.Sprintf("text:%d", len(in.Content))
}

// IsTextual reports whether a file input can be read as plain text.
func (in ReportInput) IsTextual() bool {
	if in.Kind == InputText {
		return true
	}
	return strings.HasPrefix(in.MIMEType, "text/") || in.MIMEType == "application/json"
}

const octetStream = "application/octet-stream"

// DetectMIME keeps a declared type when present. Otherwise it looks at the
// extension (csv, txt and json first, then the mime table) and finally sniffs
// data. A declared octet-stream counts as undeclared.
func DetectMIME(name, declared string, data []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		mt, _, err := mime.ParseMediaType(declared)
		switch {
		case err != nil:
			return declared
		case mt != octetStream:
			return mt
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	}
	if ext != "" {
		if mt, _, err := mime.ParseMediaType(mime.TypeByExtension(ext)); err == nil {
			return mt
		}
	}
	if len(data) > 0 {
		if mt, _, err := mime.ParseMediaType(http.DetectContentType(data)); err == nil {
			return mt
		}
	}
	return octetStream
}

// Accepted reports whether the file picker accepts the type.
func Accepted(mimeType string) bool {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return true
	case mimeType == "application/pdf", mimeType == "text/plain", mimeType == "text/csv", mimeType == "application/json":
		return true
	}
	return false
}

// ValidatePair refuses a submission whose inputs are absent or blank for the chosen mode.
func ValidatePair(mode Mode, old, current ReportInput) error {
	want := InputText
	switch mode {
	case ModeFiles:
		want = InputFile
	case ModeText:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, mode)
	}
	if old.Kind != want || current.Kind != want {
		return fmt.Errorf("%w: both reports must be %s inputs", ErrInvalidInput, want)
	}
	if old.Empty() {
		return fmt.Errorf("%w: old report is empty", ErrInvalidInput)
	}
	if current.Empty() {
		return fmt.Errorf("%w: current report is empty", ErrInvalidInput)
	}
	return nil
}
