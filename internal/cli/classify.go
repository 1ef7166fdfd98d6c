package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Apply the local stock/validity rules to one product",
	Long: `Classify one product line the way the local rules do, without calling the
generation service. Leave both values of a report blank when the product is
absent from it.

  stockaudit classify --old-qty 10 --old-date 01/05/2025 --new-qty 12 --new-date 01/05/2025`,
	Args: cobra.NoArgs,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().String("old-qty", "", "quantity in the old report")
	classifyCmd.Flags().String("old-date", "", "validity in the old report (dd/mm/yyyy)")
	classifyCmd.Flags().String("new-qty", "", "quantity in the current report")
	classifyCmd.Flags().String("new-date", "", "validity in the current report (dd/mm/yyyy)")
	classifyCmd.Flags().String("today", "", "reference day (dd/mm/yyyy, default today)")
}

func runClassify(cmd *cobra.Command, args []string) error {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}

	today := time.Now()
	if raw := get("today"); raw != "" {
		t, ok := audit.ParseDate(raw)
		if !ok {
			return fmt.Errorf("--today: cannot read %q", raw)
		}
		today = t
	}

	c, ok := audit.Classify(
		audit.Observation{Quantity: get("old-qty"), Date: get("old-date")},
		audit.Observation{Quantity: get("new-qty"), Date: get("new-date")},
		today,
	)
	if !ok {
		return fmt.Errorf("values cannot be classified locally")
	}

	fmt.Fprintln(cmd.OutOrStdout(), lipgloss.JoinHorizontal(lipgloss.Top,
		severityStyle(c.Severity).Render(c.Severity.Label()),
		issueStyle.Render(c.IssueType),
		dimStyle.Render(c.Description),
	))
	return nil
}
