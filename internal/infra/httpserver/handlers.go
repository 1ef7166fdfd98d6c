package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bryanwahyu/stockaudit/internal/application/sessions"
	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
	"github.com/bryanwahyu/stockaudit/internal/middleware"
	"github.com/bryanwahyu/stockaudit/internal/render"
)

// POST /v1/{tenant}/sessions
func (r *Router) handleCreate(w http.ResponseWriter, req *http.Request) error {
	v, err := r.sessions.Create(req.Context(), tenantOf(req))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, v)
	return nil
}

// GET /v1/{tenant}/sessions/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	v, err := r.sessions.Get(req.Context(), tenantOf(req), idOf(req))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, v)
	return nil
}

// DELETE /v1/{tenant}/sessions/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	if err := r.sessions.Delete(req.Context(), tenantOf(req), idOf(req)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/{tenant}/sessions/{id}/analyze
// multipart: old + current files, or old_text + current_text fields.
// JSON: {"mode":"files|text","old":{...},"current":{...}}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	cmd, err := r.decodeAnalyze(req)
	if err != nil {
		return err
	}

	done := middleware.AnalysisStarted()
	v, err := r.sessions.Analyze(req.Context(), tenantOf(req), idOf(req), cmd)
	done(err != nil)
	if err != nil {
		if errors.Is(err, audit.ErrAnalysis) {
			// state already moved to error; hand it back with the generic message
			status, msg := r.classify(err)
			r.log.Warn("analysis failed",
				zap.String("tenant", tenantOf(req)),
				zap.String("session", idOf(req)),
				zap.Int("status", status),
				zap.Error(err),
			)
			writeJSON(w, status, errorBody{Error: msg, State: &v})
			return nil
		}
		return err
	}
	writeJSON(w, http.StatusOK, v)
	return nil
}

func (r *Router) decodeAnalyze(req *http.Request) (sessions.AnalyzeCommand, error) {
	mt, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		return r.decodeMultipart(req)
	}

	var body struct {
		Mode    audit.Mode        `json:"mode"`
		Old     audit.ReportInput `json:"old"`
		Current audit.ReportInput `json:"current"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, req.Body, r.opts.MaxUploadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return sessions.AnalyzeCommand{}, badRequest{fmt.Errorf("decode body: %w", err)}
	}
	old, err := normalize(body.Old)
	if err != nil {
		return sessions.AnalyzeCommand{}, err
	}
	current, err := normalize(body.Current)
	if err != nil {
		return sessions.AnalyzeCommand{}, err
	}
	mode := body.Mode
	if mode == "" {
		mode = audit.ModeText
		if old.Kind == audit.InputFile {
			mode = audit.ModeFiles
		}
	}
	return sessions.AnalyzeCommand{Mode: mode, Old: old, Current: current}, nil
}

// normalize re-derives the MIME type of JSON file inputs the same way uploads do.
func normalize(in audit.ReportInput) (audit.ReportInput, error) {
	if in.Kind != audit.InputFile {
		return in, nil
	}
	out := audit.NewFileInput(middleware.SanitizeFilename(in.Name), in.MIMEType, in.Data)
	if len(out.Data) > 0 && !audit.Accepted(out.MIMEType) {
		return out, fmt.Errorf("%w: unsupported type %s", audit.ErrInvalidInput, out.MIMEType)
	}
	return out, nil
}

func (r *Router) decodeMultipart(req *http.Request) (sessions.AnalyzeCommand, error) {
	req.Body = http.MaxBytesReader(nil, req.Body, r.opts.MaxUploadBytes)
	if err := req.ParseMultipartForm(r.opts.MaxUploadBytes); err != nil {
		return sessions.AnalyzeCommand{}, badRequest{fmt.Errorf("parse multipart: %w", err)}
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	mode := audit.Mode(req.FormValue("mode"))
	_, hasOld := req.MultipartForm.File["old"]
	if mode == "" {
		mode = audit.ModeText
		if hasOld {
			mode = audit.ModeFiles
		}
	}

	if mode == audit.ModeText {
		return sessions.AnalyzeCommand{
			Mode:    mode,
			Old:     audit.NewTextInput(req.FormValue("old_text")),
			Current: audit.NewTextInput(req.FormValue("current_text")),
		}, nil
	}

	old, err := formFile(req.MultipartForm, "old")
	if err != nil {
		return sessions.AnalyzeCommand{}, err
	}
	current, err := formFile(req.MultipartForm, "current")
	if err != nil {
		return sessions.AnalyzeCommand{}, err
	}
	return sessions.AnalyzeCommand{Mode: mode, Old: old, Current: current}, nil
}

// formFile returns an empty file input for a missing part; ValidatePair refuses it.
func formFile(form *multipart.Form, field string) (audit.ReportInput, error) {
	headers := form.File[field]
	if len(headers) == 0 {
		return audit.ReportInput{Kind: audit.InputFile}, nil
	}
	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		return audit.ReportInput{}, fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return audit.ReportInput{}, fmt.Errorf("read %s: %w", field, err)
	}
	return normalize(audit.ReportInput{
		Kind:     audit.InputFile,
		Name:     fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Data:     data,
	})
}

// POST /v1/{tenant}/sessions/{id}/actions
func (r *Router) handleAction(w http.ResponseWriter, req *http.Request) error {
	var a session.Action
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return badRequest{fmt.Errorf("decode action: %w", err)}
	}
	v, err := r.sessions.Dispatch(req.Context(), tenantOf(req), idOf(req), a)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, v)
	return nil
}

// GET /v1/{tenant}/sessions/{id}/exports/{kind}?include_notes=&include_questions=&author=&format=json
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	ov, err := overrides(req)
	if err != nil {
		return err
	}
	doc, err := r.sessions.Export(req.Context(), tenantOf(req), idOf(req), render.Kind(chi.URLParam(req, "kind")), ov)
	middleware.RecordExport(len(doc.Body), err != nil)
	if err != nil {
		return err
	}

	if req.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, doc)
		return nil
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	w.Header().Set("X-Items", strconv.Itoa(doc.Items))
	if doc.URL != "" {
		w.Header().Set("X-Artifact-URL", doc.URL)
	}
	_, err = w.Write(doc.Body)
	return err
}

// GET /v1/{tenant}/sessions/{id}/share?variant=
func (r *Router) handleShare(w http.ResponseWriter, req *http.Request) error {
	ov, err := overrides(req)
	if err != nil {
		return err
	}
	sh, err := r.sessions.Share(req.Context(), tenantOf(req), idOf(req), variant(req.URL.Query().Get("variant")), ov, false)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, sh)
	return nil
}

// POST /v1/{tenant}/sessions/{id}/share
// Body: {"variant":"final","author":"..."}; posts the text to the team channel.
func (r *Router) handleShareNotify(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Variant          render.Variant `json:"variant"`
		Author           string         `json:"author"`
		IncludeNotes     *bool          `json:"include_notes"`
		IncludeQuestions *bool          `json:"include_questions"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return badRequest{fmt.Errorf("decode share: %w", err)}
	}
	ov := sessions.Overrides{
		IncludeNotes:     body.IncludeNotes,
		IncludeQuestions: body.IncludeQuestions,
		Author:           middleware.SanitizeString(body.Author),
	}
	sh, err := r.sessions.Share(req.Context(), tenantOf(req), idOf(req), variant(string(body.Variant)), ov, true)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, sh)
	return nil
}

// GET /v1/{tenant}/sessions/{id}/views/{view}
func (r *Router) handleView(w http.ResponseWriter, req *http.Request) error {
	ov, err := overrides(req)
	if err != nil {
		return err
	}
	page, err := r.sessions.View(req.Context(), tenantOf(req), idOf(req), render.View(chi.URLParam(req, "view")), ov)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(page)
	return err
}

// GET /v1/{tenant}/analyses?page=&page_size=
func (r *Router) handleHistoryList(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.history.List(req.Context(), tenantOf(req), page, middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/{tenant}/analyses/{id}
func (r *Router) handleHistoryGet(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.history.Get(req.Context(), tenantOf(req), audit.RecordID(idOf(req)))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rec)
	return nil
}

func variant(v string) render.Variant {
	if v == "" {
		return render.VariantFinal
	}
	return render.Variant(strings.ToLower(v))
}

func overrides(req *http.Request) (sessions.Overrides, error) {
	q := req.URL.Query()
	ov := sessions.Overrides{Author: middleware.SanitizeString(q.Get("author"))}
	for name, dst := range map[string]**bool{
		"include_notes":     &ov.IncludeNotes,
		"include_questions": &ov.IncludeQuestions,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return ov, badRequest{fmt.Errorf("%s: %w", name, err)}
		}
		*dst = &b
	}
	return ov, nil
}
