package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bryanwahyu/stockaudit/internal/application/analysis"
	"github.com/bryanwahyu/stockaudit/internal/application/sessions"
	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
	"github.com/bryanwahyu/stockaudit/internal/render"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type stubAnalysis struct {
	err  error
	last analysis.AnalyzeCommand
}

func (s *stubAnalysis) Analyze(_ context.Context, cmd analysis.AnalyzeCommand) (analysis.Outcome, error) {
	s.last = cmd
	if s.err != nil {
		return analysis.Outcome{}, s.err
	}
	res := &audit.AnalysisResult{
		Summary:              "Duas divergências",
		TotalProductsChecked: 4,
		InconsistenciesFound: 2,
		Details: []audit.InconsistencyDetail{
			{ProductName: "Arroz 5kg", IssueType: "Vencido", Report1Value: "10", Report2Value: "10", Severity: audit.SeverityHigh},
			{ProductName: "Feijão", IssueType: "Sumiu", Report1Value: "4", Report2Value: "0", Severity: audit.SeverityHigh},
		},
	}
	audit.AssignIDs(res.Details)
	return analysis.Outcome{RecordID: "3f1c2a9e-8d51-4c7b-9a3e-2b6f0d4e7c11", Result: res}, nil
}

type stubHistory struct {
	records map[audit.RecordID]*audit.AnalysisRecord
}

func (h *stubHistory) Get(_ context.Context, tenant string, id audit.RecordID) (*audit.AnalysisRecord, error) {
	rec, ok := h.records[id]
	if !ok || rec.TenantID != tenant {
		return nil, audit.ErrRecordNotFound
	}
	return rec, nil
}

func (h *stubHistory) List(_ context.Context, tenant string, page, pageSize int) (audit.Page, error) {
	var out []*audit.AnalysisRecord
	for _, r := range h.records {
		if r.TenantID == tenant {
			out = append(out, r)
		}
	}
	return audit.NewPage(out, page, pageSize, int64(len(out))), nil
}

func newTestServer(t *testing.T, an *stubAnalysis, opts Options) *httptest.Server {
	t.Helper()
	c := fixedClock{now: time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)}
	store, err := sessions.NewStore(16, time.Hour, c)
	require.NoError(t, err)
	svc := &sessions.Service{
		Store:    store,
		Analysis: an,
		Options:  render.DefaultOptions(),
		Clock:    c,
	}
	hist := &stubHistory{records: map[audit.RecordID]*audit.AnalysisRecord{
		"3f1c2a9e-8d51-4c7b-9a3e-2b6f0d4e7c11": {ID: "3f1c2a9e-8d51-4c7b-9a3e-2b6f0d4e7c11", TenantID: "acme", Status: audit.RecordSuccess},
	}}
	srv := httptest.NewServer(NewRouter(svc, hist, opts))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, contentType string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func createSession(t *testing.T, base string) sessions.StateView {
	t.Helper()
	resp, body := do(t, http.MethodPost, base+"/v1/acme/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var v sessions.StateView
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func analyzeText(t *testing.T, base, id string) sessions.StateView {
	t.Helper()
	payload := `{"mode":"text","old":{"type":"text","content":"Arroz 10"},"current":{"type":"text","content":"Arroz 10"}}`
	resp, body := do(t, http.MethodPost, base+"/v1/acme/sessions/"+id+"/analyze", "application/json", []byte(payload))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var v sessions.StateView
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, &stubAnalysis{}, Options{})

	v := createSession(t, srv.URL)
	assert.Equal(t, session.StatusIdle, v.Status)

	v = analyzeText(t, srv.URL, v.ID)
	assert.Equal(t, session.StatusSuccess, v.Status)
	require.NotNil(t, v.Result)
	assert.Len(t, v.Selection, 2)

	act, _ := json.Marshal(session.Action{Type: session.ActionToggleItem, Scope: session.ScopeDashboard, ID: v.Result.Details[0].ID})
	resp, body := do(t, http.MethodPost, srv.URL+"/v1/acme/sessions/"+v.ID+"/actions", "application/json", act)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Len(t, v.Selection, 1)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/v1/acme/sessions/"+v.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/acme/sessions/"+v.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyzeMultipartFiles(t *testing.T) {
	an := &stubAnalysis{}
	srv := newTestServer(t, an, Options{})
	v := createSession(t, srv.URL)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, field := range []string{"old", "current"} {
		fw, err := mw.CreateFormFile(field, "../../"+field+".csv")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("produto;qtd\nArroz;10\n"))
	}
	require.NoError(t, mw.Close())

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/acme/sessions/"+v.ID+"/analyze", mw.FormDataContentType(), buf.Bytes())
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	assert.Equal(t, audit.ModeFiles, an.last.Mode)
	assert.Equal(t, "old.csv", an.last.Old.Name)
	assert.Equal(t, "text/csv", an.last.Old.MIMEType)
	assert.Equal(t, "acme", an.last.TenantID)
}

func TestAnalyzeMultipartBinaryFiles(t *testing.T) {
	an := &stubAnalysis{}
	srv := newTestServer(t, an, Options{})
	v := createSession(t, srv.URL)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	// CreateFormFile declares application/octet-stream
	fw, err := mw.CreateFormFile("old", "old.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-1.4\n1 0 obj\n"))
	fw, err = mw.CreateFormFile("current", "foto")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	require.NoError(t, mw.Close())

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/acme/sessions/"+v.ID+"/analyze", mw.FormDataContentType(), buf.Bytes())
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	assert.Equal(t, "application/pdf", an.last.Old.MIMEType)
	assert.Equal(t, "image/png", an.last.Current.MIMEType)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, &stubAnalysis{}, Options{})
	v := createSession(t, srv.URL)
	url := srv.URL + "/v1/acme/sessions/" + v.ID + "/analyze"

	resp, _ := do(t, http.MethodPost, url, "application/json", []byte(`{"mode":"text","old":{"type":"text","content":"x"},"current":{"type":"text","content":"  "}}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, url, "application/json", []byte(`{"bogus":true}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, url, "application/json",
		[]byte(`{"mode":"files","old":{"type":"file","name":"a.exe","base64":"AAEC"},"current":{"type":"file","name":"b.exe","base64":"AAEC"}}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// refused input never touches the session
	resp, body := do(t, http.MethodGet, srv.URL+"/v1/acme/sessions/"+v.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got sessions.StateView
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, session.StatusIdle, got.Status)
}

func TestAnalyzeFailureReturnsGenericMessageAndState(t *testing.T) {
	srv := newTestServer(t, &stubAnalysis{err: &audit.AnalysisError{Op: "parse", Err: assert.AnError}}, Options{})
	v := createSession(t, srv.URL)

	payload := `{"old":{"type":"text","content":"a"},"current":{"type":"text","content":"b"}}`
	resp, body := do(t, http.MethodPost, srv.URL+"/v1/acme/sessions/"+v.ID+"/analyze", "application/json", []byte(payload))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var eb errorBody
	require.NoError(t, json.Unmarshal(body, &eb))
	assert.Equal(t, audit.UserMessage, eb.Error)
	require.NotNil(t, eb.State)
	assert.Equal(t, session.StatusError, eb.State.Status)
	assert.NotContains(t, string(body), assert.AnError.Error())
}

func TestAnalyzeFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	srv := newTestServer(t, &stubAnalysis{err: &audit.AnalysisError{Op: "parse", Err: assert.AnError}}, Options{Logger: zap.New(core)})
	v := createSession(t, srv.URL)

	payload := `{"old":{"type":"text","content":"a"},"current":{"type":"text","content":"b"}}`
	resp, _ := do(t, http.MethodPost, srv.URL+"/v1/acme/sessions/"+v.ID+"/analyze", "application/json", []byte(payload))
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	entries := logs.FilterMessage("analysis failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "acme", fields["tenant"])
	assert.Equal(t, v.ID, fields["session"])
	assert.Equal(t, int64(http.StatusBadGateway), fields["status"])
	assert.Contains(t, fields["error"], assert.AnError.Error())
}

func TestAnalyzeQuotaIs429(t *testing.T) {
	srv := newTestServer(t, &stubAnalysis{err: &audit.AnalysisError{Op: "generate", Err: audit.ErrQuotaExceeded}}, Options{})
	v := createSession(t, srv.URL)

	payload := `{"old":{"type":"text","content":"a"},"current":{"type":"text","content":"b"}}`
	resp, _ := do(t, http.MethodPost, srv.URL+"/v1/acme/sessions/"+v.ID+"/analyze", "application/json", []byte(payload))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestExportAndShare(t *testing.T) {
	srv := newTestServer(t, &stubAnalysis{}, Options{})
	v := createSession(t, srv.URL)

	resp, _ := do(t, http.MethodGet, srv.URL+"/v1/acme/sessions/"+v.ID+"/exports/"+string(render.KindAuditPDF), "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no result yet")

	analyzeText(t, srv.URL, v.ID)

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/acme/sessions/"+v.ID+"/exports/"+string(render.KindAuditPDF), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, "2", resp.Header.Get("X-Items"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/acme/sessions/"+v.ID+"/exports/nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/acme/sessions/"+v.ID+"/exports/"+string(render.KindAuditPDF)+"?include_notes=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/acme/sessions/"+v.ID+"/share?variant=preliminary", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var sh render.Share
	require.NoError(t, json.Unmarshal(body, &sh))
	assert.Equal(t, render.VariantPreliminary, sh.Variant)
	assert.Equal(t, 2, sh.Items)
	assert.True(t, strings.HasPrefix(sh.Link, "https://wa.me/?text="))

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/acme/sessions/"+v.ID+"/views/dashboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "Arroz 5kg")
}

func TestTenantAndIDValidation(t *testing.T) {
	srv := newTestServer(t, &stubAnalysis{}, Options{APIKeys: map[string]string{"acme": "k-acme"}})

	resp, _ := do(t, http.MethodPost, srv.URL+"/v1/acme/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/acme/sessions/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer k-acme")
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/v1/other/sessions", nil)
	req.Header.Set("Authorization", "Bearer k-acme")
	r, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusForbidden, r.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHistoryRoutes(t *testing.T) {
	srv := newTestServer(t, &stubAnalysis{}, Options{})

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/acme/analyses", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list audit.Page
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Data, 1)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 20, list.PageSize)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/acme/analyses/3f1c2a9e-8d51-4c7b-9a3e-2b6f0d4e7c11", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/other/analyses/3f1c2a9e-8d51-4c7b-9a3e-2b6f0d4e7c11", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/other/analyses", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Empty(t, list.Data)
	assert.Equal(t, int64(0), list.Total)
}
