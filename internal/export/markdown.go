package export

import (
	"fmt"
	"strings"
	"time"

	"botscan/internal/session"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

func renderMarkdown(view session.View, now time.Time) string {
	p, r := view.State.Profile, view.State.Report
	var b strings.Builder

	fmt.Fprintf(&b, "# Bot Detection Report: u/%s\n\n", p.ScreenName)
	fmt.Fprintf(&b, "_Generated %s_\n\n", now.UTC().Format(time.RFC1123))

	b.WriteString("## Verdict\n\n")
	fmt.Fprintf(&b, "**%s ACCOUNT** (human %d%%, bot %d%%)\n\n", view.State.Classification.Label(), r.HumanConfidence, r.BotConfidence)
	if r.AnalysisResult != "" {
		fmt.Fprintf(&b, "%s\n\n", r.AnalysisResult)
	}
	if r.KeyIndicators != "" {
		fmt.Fprintf(&b, "## Key Indicators\n\n%s\n\n", r.KeyIndicators)
	}

	b.WriteString("## Account\n\n| Field | Value |\n| --- | --- |\n")
	rows := [][2]string{
		{"Name", p.Name},
		{"Screen name", p.ScreenName},
		{"Cake day", p.CakeDay},
		{"Post karma", fmt.Sprint(p.PostKarma)},
		{"Comment karma", fmt.Sprint(p.CommentKarma)},
		{"Verified", fmt.Sprint(p.Verified)},
		{"Achievements", strings.Join(p.Achievements, ", ")},
		{"Trophies", strings.Join(p.TrophyCase, ", ")},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], escapeCell(row[1]))
	}

	b.WriteString("\n## Model Metrics\n\n| Accuracy | Precision | Recall | Activity score |\n| --- | --- | --- | --- |\n")
	fmt.Fprintf(&b, "| %g%% | %g%% | %g%% | %g |\n\n", r.ModelMetrics.Accuracy, r.ModelMetrics.Precision, r.ModelMetrics.Recall, r.ActivityScore)

	fmt.Fprintf(&b, "## Activity\n\n- Normal: %g%%\n- Repeated: %g%%\n- Suspicious: %g%%\n- Suspicious activities flagged: %d\n\n",
		r.NormalActivity, r.RepeatedActivity, r.SuspiciousActivity, r.SuspiciousActivities)

	if len(r.BehaviorPatterns) > 0 {
		b.WriteString("## Behavior Patterns\n\n")
		for _, bp := range r.BehaviorPatterns {
			flag := "normal"
			if bp.IsSuspicious {
				flag = "suspicious"
			}
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", bp.Name, flag, bp.Description)
		}
		b.WriteString("\n")
	}

	if len(view.Log) > 0 {
		b.WriteString("## Console\n\n```text\n")
		for _, e := range view.Log {
			fmt.Fprintf(&b, "[%s] %s\n", e.EmittedAt.UTC().Format("15:04:05.000"), e.Text)
		}
		b.WriteString("```\n")
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func renderHTML(view session.View, now time.Time) []byte {
	md := renderMarkdown(view, now)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
		Title: "Bot Detection Report: u/" + view.State.Profile.ScreenName,
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}
