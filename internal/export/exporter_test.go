package export

import (
	"bytes"
	"testing"
	"time"

	"botscan/internal/clock"
	"botscan/internal/errors"
	"botscan/internal/session"
	"botscan/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var generated = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func readyView() session.View {
	profile := testkit.Profile("alice")
	profile.Name = "Alice Smith"
	report := testkit.ReportFor(profile)
	return session.View{
		SessionID: "s1",
		State:     session.Ready("alice", 3, profile, report, generated),
		Log: []session.LogEntry{
			{Generation: 3, EmittedAt: generated, Text: "INITIATING SCAN: alice"},
			{Generation: 3, EmittedAt: generated.Add(3 * time.Second), Text: "CONFIDENCE: HUMAN ACCOUNT DETECTED"},
		},
	}
}

func TestExporter_RefusesUnlessReady(t *testing.T) {
	e := NewExporter(clock.NewManual(generated), nil)
	states := []session.State{
		session.Idle(0, generated),
		session.Scanning("alice", 1, generated),
		session.ProfileLoaded("alice", 1, testkit.Profile("alice"), generated),
		session.Failed("alice", 1, session.StageReport, "boom", generated),
	}

	for _, st := range states {
		t.Run(string(st.Kind), func(t *testing.T) {
			assert.Equal(t, errors.CodeNotReady, errors.GetCode(CheckReady(session.View{State: st})))
			artifact, err := e.Export(session.View{State: st}, FormatHTML)
			assert.Nil(t, artifact)
			require.Error(t, err)
			assert.Equal(t, errors.CodeNotReady, errors.GetCode(err))
		})
	}
}

func TestCheckReady_AcceptsReadyView(t *testing.T) {
	assert.NoError(t, CheckReady(readyView()))
}

func TestExporter_Markdown(t *testing.T) {
	artifact, err := NewExporter(clock.NewManual(generated), nil).Export(readyView(), FormatMarkdown)
	require.NoError(t, err)

	doc := string(artifact.Data)
	assert.Equal(t, "Alice_Smith-report.md", artifact.Filename)
	assert.Contains(t, artifact.ContentType, "text/markdown")
	assert.Contains(t, doc, "# Bot Detection Report: u/alice")
	assert.Contains(t, doc, "**HUMAN ACCOUNT** (human 75%, bot 25%)")
	assert.Contains(t, doc, "- **Content Variety** (normal)")
	assert.Contains(t, doc, "[12:00:03.000] CONFIDENCE: HUMAN ACCOUNT DETECTED")
}

func TestExporter_HTML(t *testing.T) {
	artifact, err := NewExporter(clock.NewManual(generated), nil).Export(readyView(), FormatHTML)
	require.NoError(t, err)

	doc := string(artifact.Data)
	assert.Equal(t, "Alice_Smith-report.html", artifact.Filename)
	assert.Contains(t, doc, "<title>Bot Detection Report: u/alice</title>")
	assert.Contains(t, doc, "<table>")
	assert.Contains(t, doc, "<strong>HUMAN ACCOUNT</strong>")
}

func TestExporter_XLSX(t *testing.T) {
	artifact, err := NewExporter(clock.NewManual(generated), nil).Export(readyView(), FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "Alice_Smith-report.xlsx", artifact.Filename)

	f, err := excelize.OpenReader(bytes.NewReader(artifact.Data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetReport, sheetPatterns, sheetConsole}, f.GetSheetList())
	verdict, err := f.GetCellValue(sheetReport, "B4")
	require.NoError(t, err)
	assert.Equal(t, "HUMAN", verdict)

	line, err := f.GetCellValue(sheetConsole, "B2")
	require.NoError(t, err)
	assert.Equal(t, "INITIATING SCAN: alice", line)

	rows, err := f.GetRows(sheetPatterns)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"md": FormatMarkdown, "HTML": FormatHTML, "": FormatHTML, "excel": FormatXLSX, "xlsx": FormatXLSX}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("pdf")
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "account-report.md", Filename("  ", FormatMarkdown))
	assert.Equal(t, "a_b-report.xlsx", Filename("a/b", FormatXLSX))
	assert.Equal(t, "bot42-report.html", Filename("bot42", FormatHTML))
}
