package display

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyike/DexterGo/internal/models"
)

// ReportMarkdown renders a report as a standalone markdown document.
func ReportMarkdown(report *models.StructuredReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", report.Title)
	fmt.Fprintf(&b, "**Symbol:** %s  \n**Generated:** %s\n\n", report.SymbolKey, report.GeneratedAt.Format("2006-01-02 15:04 MST"))

	b.WriteString("## Thesis\n\n")
	b.WriteString(report.Thesis + "\n\n")

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		for _, item := range items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	writeList("Bull case", report.BullCase)
	writeList("Bear case", report.BearCase)
	writeList("Risks", report.Risks)

	b.WriteString("## Conclusion\n\n")
	b.WriteString(report.Conclusion + "\n")

	return b.String()
}

// WriteReportMarkdown writes the markdown rendition of a report into dir,
// creating the directory if needed.
func WriteReportMarkdown(dir, fileName string, report *models.StructuredReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, []byte(ReportMarkdown(report)), 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}
