package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/DexterGo/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1).
		MarginBottom(1)

	bannerStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true).
		Align(lipgloss.Center).
		Width(80)

	sectionStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6"))

	reportBoxStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(1, 2).
		Width(80)

	statusStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	speakerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#F59E0B"))

	toolStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#8B5CF6"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	errStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	bulletStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981"))

	riskStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444"))
)

// Renderer writes meeting progress and reports to a terminal.
type Renderer struct {
	out     io.Writer
	verbose bool
}

func NewRenderer(verbose bool) *Renderer {
	return &Renderer{out: os.Stdout, verbose: verbose}
}

// NewRendererTo is used by tests to capture output.
func NewRendererTo(out io.Writer, verbose bool) *Renderer {
	return &Renderer{out: out, verbose: verbose}
}

func (r *Renderer) Banner() {
	fmt.Fprintln(r.out, bannerStyle.Render("DexterGo · market research meetings"))
	fmt.Fprintln(r.out)
}

// HandleEvent renders a single meeting event. It is shaped to be passed
// as a meeting.Observer.
func (r *Renderer) HandleEvent(ev models.MeetingEvent) {
	switch ev.EventType {
	case models.EventStatus:
		if state, ok := ev.Payload["state"].(string); ok {
			fmt.Fprintln(r.out, statusStyle.Render("· "+stateLabel(state)))
		} else if status, ok := ev.Payload["status"].(string); ok {
			line := status
			if reason, ok := ev.Payload["reason"].(string); ok {
				line += ": " + reason
			}
			fmt.Fprintln(r.out, statusStyle.Render("· "+line))
		}
	case models.EventMessage:
		speaker, _ := ev.Payload["agent"].(string)
		content, _ := ev.Payload["content"].(string)
		fmt.Fprintf(r.out, "%s %s\n\n", speakerStyle.Render(speaker+":"), wrap(content, 78))
	case models.EventPlanGenerated:
		steps, _ := ev.Payload["steps"].(int)
		fmt.Fprintln(r.out, toolStyle.Render(fmt.Sprintf("research plan generated (%d steps)", steps)))
	case models.EventToolStart:
		if r.verbose {
			tool, _ := ev.Payload["tool"].(string)
			fmt.Fprintln(r.out, toolStyle.Render("  → "+tool))
		}
	case models.EventToolComplete:
		tool, _ := ev.Payload["tool"].(string)
		quality, _ := ev.Payload["quality"].(string)
		fmt.Fprintln(r.out, okStyle.Render("  ✓ ")+toolStyle.Render(tool)+statusStyle.Render(" ["+quality+"]"))
	case models.EventToolError:
		tool, _ := ev.Payload["tool"].(string)
		reason, _ := ev.Payload["error"].(string)
		fmt.Fprintln(r.out, errStyle.Render("  ✗ "+tool+": "+reason))
	case models.EventFinished:
		fmt.Fprintln(r.out, okStyle.Render("meeting finished"))
	}
}

// RenderReport prints the final structured report.
func (r *Renderer) RenderReport(report *models.StructuredReport) {
	if report == nil {
		return
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(report.Title) + "\n")
	b.WriteString(statusStyle.Render(report.SymbolKey+" · "+report.GeneratedAt.Format("2006-01-02 15:04")) + "\n\n")

	b.WriteString(sectionStyle.Render("Thesis") + "\n")
	b.WriteString(wrap(report.Thesis, 74) + "\n\n")

	if len(report.BullCase) > 0 {
		b.WriteString(sectionStyle.Render("Bull case") + "\n")
		for _, p := range report.BullCase {
			b.WriteString(bulletStyle.Render("  + ") + wrap(p, 70) + "\n")
		}
		b.WriteString("\n")
	}
	if len(report.BearCase) > 0 {
		b.WriteString(sectionStyle.Render("Bear case") + "\n")
		for _, p := range report.BearCase {
			b.WriteString(riskStyle.Render("  - ") + wrap(p, 70) + "\n")
		}
		b.WriteString("\n")
	}
	if len(report.Risks) > 0 {
		b.WriteString(sectionStyle.Render("Risks") + "\n")
		for _, p := range report.Risks {
			b.WriteString(riskStyle.Render("  ! ") + wrap(p, 70) + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(sectionStyle.Render("Conclusion") + "\n")
	b.WriteString(wrap(report.Conclusion, 74))

	fmt.Fprintln(r.out, reportBoxStyle.Render(b.String()))
}

func stateLabel(state string) string {
	switch state {
	case string(models.StatePlan):
		return "planning research"
	case string(models.StateValidate):
		return "validating plan"
	case string(models.StateExecute):
		return "executing tools"
	case string(models.StateDiscuss):
		return "experts discussing"
	case string(models.StateSynthesize):
		return "synthesizing report"
	default:
		return state
	}
}

// wrap breaks text on word boundaries; continuation lines are indented
// to stay inside the report box.
func wrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}
	var b strings.Builder
	lineLen := 0
	for i, w := range words {
		if i > 0 {
			if lineLen+1+len(w) > width {
				b.WriteString("\n    ")
				lineLen = 4
			} else {
				b.WriteString(" ")
				lineLen++
			}
		}
		b.WriteString(w)
		lineLen += len(w)
	}
	return b.String()
}
