package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
	"github.com/bryanwahyu/stockaudit/internal/render"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"compare", "classify", "serve", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestClassifyCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"classify",
		"--old-qty", "10", "--old-date", "01/05/2025",
		"--new-qty", "12", "--new-date", "01/05/2025",
		"--today", "15/04/2025",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, Execute())
	assert.Contains(t, out.String(), audit.IssueUnexplainedIncrease)
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "antigo.csv")
	require.NoError(t, os.WriteFile(csv, []byte("Arroz;10;01/05/2025\n"), 0o600))
	exe := filepath.Join(dir, "tool.exe")
	require.NoError(t, os.WriteFile(exe, []byte{0x4d, 0x5a, 0x90, 0x00, 0x03, 0x00, 0x00, 0x00}, 0o600))

	in, err := readInput(csv, false)
	require.NoError(t, err)
	assert.Equal(t, audit.InputFile, in.Kind)
	assert.Equal(t, "text/csv", in.MIMEType)
	assert.Equal(t, "antigo.csv", in.Name)

	in, err = readInput(csv, true)
	require.NoError(t, err)
	assert.Equal(t, audit.InputText, in.Kind)
	assert.Contains(t, in.Content, "Arroz")

	_, err = readInput(exe, false)
	assert.ErrorIs(t, err, audit.ErrInvalidInput)
}

func TestReadInputDocumentsAndImages(t *testing.T) {
	dir := t.TempDir()
	files := map[string]struct {
		data []byte
		mime string
	}{
		"estoque.pdf": {[]byte("%PDF-1.4\n1 0 obj\n"), "application/pdf"},
		"foto.png":    {[]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), "image/png"},
		"foto.jpg":    {[]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}, "image/jpeg"},
		"scan":        {[]byte("%PDF-1.7\n"), "application/pdf"},
	}
	for name, f := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, f.data, 0o600))

		in, err := readInput(path, false)
		require.NoError(t, err, name)
		assert.Equal(t, f.mime, in.MIMEType, name)
		assert.False(t, in.IsTextual(), name)
	}
}

func TestWriteArtifacts(t *testing.T) {
	res := &audit.AnalysisResult{
		Summary:              "Uma divergência",
		TotalProductsChecked: 3,
		InconsistenciesFound: 1,
		Details: []audit.InconsistencyDetail{
			{ProductName: "Café 500g", IssueType: audit.IssueExpired, Report1Value: "6", Report1Date: "01/01/2025", Report2Value: "6", Report2Date: "01/02/2025", Severity: audit.SeverityHigh},
		},
	}
	audit.AssignIDs(res.Details)
	st, err := loaded(res)
	require.NoError(t, err)
	assert.Equal(t, session.StatusSuccess, st.Status)

	opts := render.DefaultOptions()
	opts.GeneratedAt = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	dir := filepath.Join(t.TempDir(), "out")
	files, err := writeArtifacts(context.Background(), dir, st, opts, nil)
	require.NoError(t, err)
	require.Len(t, files, 6)

	var pdfs, texts int
	for _, f := range files {
		assert.Positive(t, f.Size)
		switch {
		case strings.HasSuffix(f.Path, ".pdf"):
			pdfs++
		case strings.HasSuffix(f.Path, ".txt"):
			texts++
		}
	}
	assert.Equal(t, 3, pdfs)
	assert.Equal(t, 3, texts)

	var buf bytes.Buffer
	printFiles(&buf, files)
	assert.Contains(t, buf.String(), "share-final.txt")
}

func TestWriteArtifactsWithoutInconsistencies(t *testing.T) {
	res := &audit.AnalysisResult{Summary: "Tudo certo", TotalProductsChecked: 4, Details: []audit.InconsistencyDetail{}}
	st, err := loaded(res)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	files, err := writeArtifacts(context.Background(), dir, st, render.DefaultOptions(), nil)
	require.NoError(t, err)
	require.Len(t, files, 3)
	for _, f := range files {
		assert.True(t, strings.HasSuffix(f.Path, ".txt"), f.Path)
	}
}

func TestPrintResultEmpty(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &audit.AnalysisResult{Summary: "Tudo certo", TotalProductsChecked: 4}, 0, time.Second)
	assert.Contains(t, buf.String(), render.EmptyState)
	assert.Contains(t, buf.String(), "Tudo certo")
}
