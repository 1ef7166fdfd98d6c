package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
)

func TestSegmentsOrder(t *testing.T) {
	old := audit.NewFileInput("antigo.pdf", "application/pdf", []byte("%PDF-1.4"))
	current := audit.NewTextInput("Arroz 5kg 10 20/12/2025")
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	segs := Segments(old, current, today)
	require.Len(t, segs, 6)

	assert.Equal(t, Instructions, segs[0].Text)
	assert.Contains(t, segs[1].Text, "15/06/2025")
	assert.Equal(t, OldHeader, segs[2].Text)
	require.NotNil(t, segs[3].Report)
	assert.Equal(t, "application/pdf", segs[3].Report.MIMEType)
	assert.Equal(t, Separator, segs[4].Text)
	assert.Nil(t, segs[5].Report)
	assert.Equal(t, current.Content, segs[5].Text)
}

func TestInstructionsNameEveryIssueType(t *testing.T) {
	for _, issue := range []string{
		audit.IssueNormalSale,
		audit.IssueUnexplainedIncrease,
		audit.IssueDateDivergence,
		audit.IssueExpired,
		audit.IssueMissingInCurrent,
		audit.IssueNewUnlisted,
	} {
		assert.True(t, strings.Contains(Instructions, issue), issue)
	}
	assert.Len(t, DetailRequired, 8)
	assert.Equal(t, []string{"low", "medium", "high"}, SeverityEnum)
}
