package cli

import (
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	coreapp "straits/internal/core/app"
	"straits/internal/core/errors"
	"straits/internal/engine/host"

	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	locationStyle = lipgloss.NewStyle().Bold(true)

	gutterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)
)

// formatDiagnostic renders err for a terminal. Positioned errors get a code
// frame taken from the file on disk.
func formatDiagnostic(err error) string {
	if err == nil {
		return ""
	}

	var rtErr *host.RuntimeError
	if stderrors.As(err, &rtErr) {
		var b strings.Builder
		b.WriteString(errorStyle.Render("runtime error") + ": " + rtErr.Error() + "\n")
		if rtErr.Stack != "" {
			b.WriteString(gutterStyle.Render(strings.TrimRight(rtErr.Stack, "\n")) + "\n")
		}
		return b.String()
	}

	var domainErr *errors.DomainError
	if !stderrors.As(err, &domainErr) {
		return errorStyle.Render("error") + ": " + err.Error() + "\n"
	}

	path, line, column, ok := domainErr.Location()
	message := domainErr.Message
	if domainErr.Err != nil {
		message += ": " + domainErr.Err.Error()
	}

	var b strings.Builder
	header := errorStyle.Render("error["+string(domainErr.Code)+"]") + ": " + message
	switch {
	case ok && path != "":
		b.WriteString(locationStyle.Render(fmt.Sprintf("%s:%d:%d", path, line, column)) + ": " + header + "\n")
	case path != "":
		b.WriteString(locationStyle.Render(path) + ": " + header + "\n")
	default:
		b.WriteString(header + "\n")
	}
	if ok && path != "" {
		b.WriteString(codeFrame(path, line, column))
	}
	return b.String()
}

func codeFrame(path string, line, column int) string {
	data, err := os.ReadFile(path)
	if err != nil || line < 1 {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	if line > len(lines) {
		return ""
	}
	text := strings.TrimRight(lines[line-1], "\r")

	num := strconv.Itoa(line)
	pad := strings.Repeat(" ", len(num))

	var caret strings.Builder
	for i := 0; i < column-1 && i < len(text); i++ {
		if text[i] == '\t' {
			caret.WriteByte('\t')
		} else {
			caret.WriteByte(' ')
		}
	}

	var b strings.Builder
	b.WriteString(gutterStyle.Render(num+" | ") + text + "\n")
	b.WriteString(gutterStyle.Render(pad+" | ") + caret.String() + errorStyle.Render("^") + "\n")
	return b.String()
}

func formatSummary(report coreapp.BuildReport) string {
	summary := fmt.Sprintf("%d units, %d cached, %d failed in %s",
		report.Units, report.CacheHits, report.Failures, report.Duration.Round(time.Millisecond))
	switch {
	case report.Failures > 0:
		return errorStyle.Render("build failed") + ": " + summary
	case report.Units == 0:
		return warningStyle.Render("nothing to build") + ": " + summary
	default:
		return successStyle.Render("build ok") + ": " + summary
	}
}
