// Package export renders a finished session into downloadable documents.
package export

import (
	"fmt"
	"regexp"
	"strings"

	"botscan/internal/clock"
	"botscan/internal/errors"
	"botscan/internal/metrics"
	"botscan/internal/session"
)

// Format is an export document type
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat accepts a format name or a common alias
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "":
		return FormatHTML, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", errors.ValidationError(fmt.Sprintf("unsupported export format %q", s))
}

func (f Format) extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

func (f Format) contentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/html; charset=utf-8"
}

// Artifact is a rendered document
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Exporter renders views of Ready sessions
type Exporter struct {
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewExporter(clk clock.Clock, m *metrics.Metrics) *Exporter {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Exporter{clock: clk, metrics: m}
}

// CheckReady refuses views that are not Ready with a NOT_READY error
func CheckReady(view session.View) error {
	st := view.State
	if st.Kind != session.KindReady || st.Profile == nil || st.Report == nil {
		return errors.NotReady(fmt.Sprintf("cannot export while session is %s", st.Kind))
	}
	return nil
}

// Export renders view in format. Views that are not Ready are refused with
// a NOT_READY error before anything is rendered.
func (e *Exporter) Export(view session.View, format Format) (*Artifact, error) {
	st := view.State
	if err := CheckReady(view); err != nil {
		e.metrics.Export(string(format), err)
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatMarkdown:
		data = []byte(renderMarkdown(view, e.clock.Now()))
	case FormatHTML:
		data = renderHTML(view, e.clock.Now())
	case FormatXLSX:
		data, err = renderXLSX(view, e.clock.Now())
	default:
		err = errors.ValidationError(fmt.Sprintf("unsupported export format %q", format))
	}
	e.metrics.Export(string(format), err)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Filename:    Filename(st.Profile.Name, format),
		ContentType: format.contentType(),
		Data:        data,
	}, nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename is "<name>-report.<ext>" with unsafe characters replaced
func Filename(name string, format Format) string {
	name = strings.Trim(unsafeFilename.ReplaceAllString(name, "_"), "._")
	if name == "" {
		name = "account"
	}
	return fmt.Sprintf("%s-report.%s", name, format.extension())
}
