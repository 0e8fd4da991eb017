package export

import (
	"time"

	"botscan/internal/errors"
	"botscan/internal/session"

	"github.com/xuri/excelize/v2"
)

const (
	sheetReport   = "Report"
	sheetPatterns = "Patterns"
	sheetConsole  = "Console"
)

func renderXLSX(view session.View, now time.Time) ([]byte, error) {
	p, r := view.State.Profile, view.State.Report

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetReport); err != nil {
		return nil, errors.Wrap(err, "failed to name report sheet")
	}
	for _, name := range []string{sheetPatterns, sheetConsole} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s sheet", name)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create header style")
	}

	summary := [][]interface{}{
		{"Field", "Value"},
		{"Screen name", p.ScreenName},
		{"Name", p.Name},
		{"Verdict", view.State.Classification.Label()},
		{"Bot confidence", r.BotConfidence},
		{"Human confidence", r.HumanConfidence},
		{"Activity score", r.ActivityScore},
		{"Suspicious activities", r.SuspiciousActivities},
		{"Accuracy", r.ModelMetrics.Accuracy},
		{"Precision", r.ModelMetrics.Precision},
		{"Recall", r.ModelMetrics.Recall},
		{"Post karma", p.PostKarma},
		{"Comment karma", p.CommentKarma},
		{"Cake day", p.CakeDay},
		{"Verified", p.Verified},
		{"Analysis", r.AnalysisResult},
		{"Key indicators", r.KeyIndicators},
		{"Generated", now.UTC().Format(time.RFC3339)},
	}
	if err := writeRows(f, sheetReport, summary); err != nil {
		return nil, err
	}

	patterns := [][]interface{}{{"Pattern", "Suspicious", "Description"}}
	for _, bp := range r.BehaviorPatterns {
		patterns = append(patterns, []interface{}{bp.Name, bp.IsSuspicious, bp.Description})
	}
	if err := writeRows(f, sheetPatterns, patterns); err != nil {
		return nil, err
	}

	console := [][]interface{}{{"Emitted", "Line"}}
	for _, e := range view.Log {
		console = append(console, []interface{}{e.EmittedAt.UTC().Format("15:04:05.000"), e.Text})
	}
	if err := writeRows(f, sheetConsole, console); err != nil {
		return nil, err
	}

	for _, sheet := range []string{sheetReport, sheetPatterns, sheetConsole} {
		if err := f.SetCellStyle(sheet, "A1", "C1", header); err != nil {
			return nil, errors.Wrap(err, "failed to style header")
		}
		if err := f.SetColWidth(sheet, "A", "A", 24); err != nil {
			return nil, errors.Wrap(err, "failed to size columns")
		}
		if err := f.SetColWidth(sheet, "B", "C", 60); err != nil {
			return nil, errors.Wrap(err, "failed to size columns")
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "failed to write workbook")
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "invalid cell")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "failed to write %s row %d", sheet, i+1)
		}
	}
	return nil
}
