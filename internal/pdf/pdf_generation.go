package pdf

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"taskboard/internal/models"
)

// Generator renders reports. Handlers depend on this so tests can swap it.
type Generator interface {
	GenerateSummary(w io.Writer, summary models.TaskSummary) error
}

// SummaryGenerator writes the task summary as an A4 PDF.
type SummaryGenerator struct {
	FontPath string // TTF with UTF-8 coverage; empty means core Helvetica
	fontName string
}

func NewSummaryGenerator(fontPath string) *SummaryGenerator {
	g := &SummaryGenerator{FontPath: fontPath, fontName: "Helvetica"}
	if fontPath != "" {
		g.fontName = "DejaVu"
	}
	return g
}

const dateLayout = "2006-01-02 15:04"

func (g *SummaryGenerator) GenerateSummary(w io.Writer, s models.TaskSummary) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Task summary", false)
	pdf.SetAuthor("taskboard", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	tr := g.addFont(pdf)
	pdf.AddPage()

	// ===== header
	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "TASK SUMMARY", "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 7, "Generated "+s.GeneratedAt.UTC().Format(dateLayout)+" UTC", "", 1, "C", false, 0, "")
	g.hr(pdf)

	// ===== totals
	g.sectionTitle(pdf, "Totals")
	g.kvLine(pdf, "All", fmt.Sprintf("%d", s.Total))
	g.kvLine(pdf, "Pending", fmt.Sprintf("%d", s.Pending))
	g.kvLine(pdf, "Completed", fmt.Sprintf("%d", s.Completed))
	g.kvLine(pdf, "Overdue", fmt.Sprintf("%d", s.Overdue))
	pdf.Ln(2)
	g.hr(pdf)

	// ===== tasks
	g.sectionTitle(pdf, "Tasks")
	widths := []float64{14, 70, 24, 31, 31}
	g.tableRow(pdf, widths, true, "ID", "Title", "Status", "Created", "Due")
	if len(s.Tasks) == 0 {
		pdf.SetFont(g.fontName, "", 10)
		pdf.CellFormat(0, 7, "No tasks", "", 1, "L", false, 0, "")
	}
	for _, t := range s.Tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.UTC().Format(dateLayout)
		}
		g.tableRow(pdf, widths, false,
			fmt.Sprintf("%d", t.ID),
			tr(truncate(t.Title, 40)),
			string(t.Status),
			t.CreatedAt.UTC().Format(dateLayout),
			due,
		)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return pdf.Output(w)
}

// addFont registers the UTF-8 font when configured and returns the text
// translator to use for user content.
func (g *SummaryGenerator) addFont(pdf *gofpdf.Fpdf) func(string) string {
	if g.FontPath == "" {
		return pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
	return func(s string) string { return s }
}

func (g *SummaryGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *SummaryGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *SummaryGenerator) tableRow(pdf *gofpdf.Fpdf, widths []float64, header bool, cols ...string) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(g.fontName, style, 10)
	for i, col := range cols {
		pdf.CellFormat(widths[i], 7, col, "1", 0, "L", header, 0, "")
	}
	pdf.Ln(-1)
}

func (g *SummaryGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
