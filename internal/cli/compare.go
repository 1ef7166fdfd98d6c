package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/stockaudit/internal/application"
	"github.com/bryanwahyu/stockaudit/internal/application/analysis"
	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
	"github.com/bryanwahyu/stockaudit/internal/infra/snapshot"
	"github.com/bryanwahyu/stockaudit/internal/render"
	"github.com/bryanwahyu/stockaudit/internal/server"
)

const cliTenant = "cli"

var compareCmd = &cobra.Command{
	Use:   "compare OLD CURRENT",
	Short: "Compare two reports and write the audit documents",
	Long: `Send both reports to the configured generation service, print the
inconsistencies and write every document for the full selection into --out.

Reports may be PDF, image, CSV, TXT or JSON files. With --text the two
arguments are read as pasted report text instead.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().Bool("text", false, "read both files as pasted text")
	compareCmd.Flags().StringP("out", "o", ".", "output directory")
	compareCmd.Flags().String("author", "", "author printed on the documents")
	compareCmd.Flags().Bool("no-notes", false, "leave notes out of the documents")
	compareCmd.Flags().Bool("no-questions", false, "leave questions out of the documents")
	compareCmd.Flags().Bool("snapshots", false, "also capture dashboard and investigation PNGs with headless Chrome")
	compareCmd.Flags().Bool("json", false, "print the result as JSON instead of a table")
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := server.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	asText, _ := cmd.Flags().GetBool("text")
	mode := audit.ModeFiles
	if asText {
		mode = audit.ModeText
	}
	old, err := readInput(args[0], asText)
	if err != nil {
		return err
	}
	current, err := readInput(args[1], asText)
	if err != nil {
		return err
	}

	analyzer, err := server.NewAnalyzer(ctx, cfg)
	if err != nil {
		return err
	}
	repo, db, err := server.OpenHistory(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	svc := &analysis.Service{
		Analyzer:   analyzer,
		History:    repo,
		Clock:      application.SystemClock{},
		Logger:     logger.Named("analysis"),
		LocalRules: cfg.Analysis.LocalRules,
		Location:   cfg.Location(),
	}
	out, err := svc.Analyze(ctx, analysis.AnalyzeCommand{TenantID: cliTenant, Mode: mode, Old: old, Current: current})
	if err != nil {
		return err
	}
	st, err := loaded(out.Result)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out.Result); err != nil {
			return err
		}
	} else {
		printResult(w, out.Result, out.Reclassified, time.Duration(out.DurationMS)*time.Millisecond)
	}

	opts := server.RenderOptions(cfg)
	opts.GeneratedAt = time.Now()
	if author, _ := cmd.Flags().GetString("author"); author != "" {
		opts.Author = author
	}
	if v, _ := cmd.Flags().GetBool("no-notes"); v {
		opts.IncludeNotes = false
	}
	if v, _ := cmd.Flags().GetBool("no-questions"); v {
		opts.IncludeQuestions = false
	}

	var snap render.Snapshotter
	if v, _ := cmd.Flags().GetBool("snapshots"); v {
		rod := snapshot.NewRod(snapshot.Config{
			BrowserBin: cfg.Snapshot.BrowserBin,
			ControlURL: cfg.Snapshot.ControlURL,
			Timeout:    cfg.Snapshot.Timeout,
		}, logger.Named("snapshot"))
		defer func() {
			if err := rod.Close(); err != nil {
				logger.Warn("close browser", zap.Error(err))
			}
		}()
		snap = rod
	}

	dir, _ := cmd.Flags().GetString("out")
	files, err := writeArtifacts(ctx, dir, st, opts, snap)
	printFiles(w, files)
	return err
}

func readInput(path string, asText bool) (audit.ReportInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return audit.ReportInput{}, err
	}
	if asText {
		return audit.NewTextInput(string(data)), nil
	}
	in := audit.NewFileInput(filepath.Base(path), "", data)
	if !audit.Accepted(in.MIMEType) {
		return in, fmt.Errorf("%w: %s is %s", audit.ErrInvalidInput, path, in.MIMEType)
	}
	return in, nil
}

// loaded builds the state a session reaches after a successful analysis:
// everything selected on both screens.
func loaded(res *audit.AnalysisResult) (session.State, error) {
	st, err := session.Reduce(session.New(), session.Action{Type: session.ActionAnalysisStarted})
	if err != nil {
		return st, err
	}
	return session.Reduce(st, session.Action{Type: session.ActionAnalysisSucceeded, Result: res})
}

type written struct {
	Path string
	Size int
}

// writeArtifacts renders every document and share text concurrently. Files
// that rendered are reported even when another one failed. A result without
// inconsistencies only gets the share texts.
func writeArtifacts(ctx context.Context, dir string, st session.State, opts render.Options, snap render.Snapshotter) ([]written, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var kinds []render.Kind
	if len(st.SelectedDetails(session.ScopeDashboard)) > 0 {
		kinds = []render.Kind{render.KindAuditPDF, render.KindFieldSheetPDF, render.KindFinalReportPDF}
		if snap != nil {
			kinds = append(kinds, render.KindDashboardPNG, render.KindInvestigationPNG)
		}
	}

	var (
		mu    sync.Mutex
		files []written
	)
	save := func(name string, body []byte) error {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, body, 0o644); err != nil {
			return err
		}
		mu.Lock()
		files = append(files, written{Path: p, Size: len(body)})
		mu.Unlock()
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, kind := range kinds {
		g.Go(func() error {
			doc, err := render.Render(gCtx, kind, st, opts, snap)
			if err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
			return save(doc.Name, doc.Body)
		})
	}
	for _, v := range []render.Variant{render.VariantPreliminary, render.VariantField, render.VariantFinal} {
		g.Go(func() error {
			sh, err := render.ShareText(v, st, opts)
			if err != nil {
				return fmt.Errorf("share %s: %w", v, err)
			}
			return save("share-"+string(v)+".txt", []byte(sh.Text+"\n\n"+sh.Link+"\n"))
		})
	}
	err := g.Wait()

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

func printResult(w io.Writer, res *audit.AnalysisResult, reclassified int, took time.Duration) {
	fmt.Fprintln(w, titleStyle.Render("Resumo"))
	fmt.Fprintln(w, boxStyle.Render(strings.TrimSpace(res.Summary)))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d produtos verificados, %d inconsistências, %d reclassificadas, %s",
		res.TotalProductsChecked, res.InconsistenciesFound, reclassified, took.Round(time.Millisecond))))
	fmt.Fprintln(w)

	if len(res.Details) == 0 {
		fmt.Fprintln(w, render.EmptyState)
		return
	}
	for _, d := range res.Details {
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top,
			severityStyle(d.Severity).Render(d.Severity.Label()),
			productStyle.Render(d.ProductName),
			issueStyle.Render(d.IssueType),
			valueStyle.Render(observed(d.Report1Value, d.Report1Date)),
			valueStyle.Render(observed(d.Report2Value, d.Report2Date)),
		))
	}
	fmt.Fprintln(w)
}

func observed(qty, date string) string {
	if strings.TrimSpace(date) == "" {
		return qty
	}
	return qty + " · " + date
}

func printFiles(w io.Writer, files []written) {
	if len(files) == 0 {
		return
	}
	fmt.Fprintln(w, titleStyle.Render("Arquivos"))
	for _, f := range files {
		fmt.Fprintf(w, "  %s %s\n", f.Path, dimStyle.Render("("+humanize.Bytes(uint64(f.Size))+")"))
	}
}
