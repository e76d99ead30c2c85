// Package pdfdoc lays out thread records as a paginated, word-wrapped document without a
// layout engine: a cursor walks down each page, wraps text against exact font metrics and
// breaks pages when the footer band is reached. Footers are stamped in a second pass once
// the final page count is known.
package pdfdoc

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.io/infrasutra/emlconvert/internal/thread"
)

// MaxCardLines caps the wrapped lines of one metadata card value so a card always fits
// on a single page.
const MaxCardLines = 6

var (
	colorInk    = Color{R: 33, G: 37, B: 41}
	colorMuted  = Color{R: 108, G: 117, B: 125}
	colorAccent = Color{R: 31, G: 78, B: 120}
	colorCard   = Color{R: 243, G: 245, B: 248}
	colorRule   = Color{R: 206, G: 212, B: 218}

	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
)

// Options controls document chrome and spacing. Sizes are in points.
type Options struct {
	Title        string
	Brand        string
	GeneratedAt  time.Time
	Margin       float64
	HeaderHeight float64
	FooterHeight float64
	BodySize     float64
	LineGap      float64
	ParagraphGap float64
}

// DefaultOptions returns the A4 settings used by the exporters.
func DefaultOptions() Options {
	return Options{
		Title:        "Email Export",
		Brand:        "emlconvert",
		Margin:       48,
		HeaderHeight: 28,
		FooterHeight: 28,
		BodySize:     10.5,
		LineGap:      3.5,
		ParagraphGap: 6,
	}
}

// Field is one label/value row of a metadata card.
type Field struct {
	Label string
	Value string
}

// Layout renders records onto a Surface. It owns the surface and its cursor for the
// lifetime of one document and is not safe for concurrent use.
type Layout struct {
	surface     Surface
	opts        Options
	cursor      Cursor
	recordPages []int
}

// NewLayout binds a layout to an empty surface.
func NewLayout(surface Surface, opts Options) *Layout {
	return &Layout{surface: surface, opts: opts}
}

// Cursor returns a copy of the current write position.
func (l *Layout) Cursor() Cursor {
	return l.cursor
}

// RecordPages returns the page on which each drawn record begins.
func (l *Layout) RecordPages() []int {
	return append([]int(nil), l.recordPages...)
}

func (l *Layout) bodyFont() Font { return Font{Family: FontFamily, Size: l.opts.BodySize} }
func (l *Layout) labelFont() Font { return Font{Family: FontFamily, Style: "B", Size: 9} }
func (l *Layout) valueFont() Font { return Font{Family: FontFamily, Size: 9.5} }
func (l *Layout) headingFont() Font { return Font{Family: FontFamily, Style: "B", Size: 14} }
func (l *Layout) titleFont() Font { return Font{Family: FontFamily, Style: "B", Size: 20} }
func (l *Layout) chromeFont() Font { return Font{Family: FontFamily, Size: 8} }

func (l *Layout) generatedLabel() string {
	if l.opts.GeneratedAt.IsZero() {
		return ""
	}
	return "Generated " + l.opts.GeneratedAt.UTC().Format("2006-01-02 15:04 MST")
}

// NewPage starts a page, draws the running header and moves the cursor to the top of
// the content area.
func (l *Layout) NewPage() {
	l.surface.AddPage()
	width, height := l.surface.PageSize()
	m := l.opts.Margin
	l.cursor = Cursor{
		Page:   l.surface.PageCount(),
		Left:   m,
		Top:    m + l.opts.HeaderHeight,
		Width:  width - 2*m,
		Bottom: height - m - l.opts.FooterHeight,
	}
	l.cursor.X = l.cursor.Left
	l.cursor.Y = l.cursor.Top
	l.drawRunningHeader()
}

// EnsureSpace starts a new page when a block of the given height would reach into the
// footer band. It reports whether a page break happened.
func (l *Layout) EnsureSpace(height float64) bool {
	if l.cursor.Fits(height) {
		return false
	}
	l.NewPage()
	return true
}

func (l *Layout) ensurePage() {
	if l.cursor.Page == 0 {
		l.NewPage()
	}
}

// Gap adds vertical space. It never breaks the page on its own; the next drawing call
// does if needed.
func (l *Layout) Gap(height float64) {
	l.cursor.Advance(min(height, max(l.cursor.Remaining(), 0)))
}

// DrawWrapped wraps text to the content width and draws it line by line, breaking
// pages as needed.
func (l *Layout) DrawWrapped(text string, font Font, color Color) {
	l.ensurePage()
	l.surface.SetFont(font)
	lineHeight := font.Size + l.opts.LineGap
	for _, line := range Wrap(text, l.cursor.Width, l.surface.StringWidth) {
		if l.EnsureSpace(lineHeight) {
			l.surface.SetFont(font)
		}
		l.surface.Text(l.cursor.Left, l.cursor.Y+font.Size, line, color)
		l.cursor.Advance(lineHeight)
	}
}

// DrawMetadataCard draws label/value rows on a shaded background. The card height is
// computed up front so the whole card moves to the next page when it does not fit.
func (l *Layout) DrawMetadataCard(fields []Field) {
	const (
		padding    = 10.0
		labelWidth = 64.0
		rowGap     = 4.0
	)
	l.ensurePage()
	label, value := l.labelFont(), l.valueFont()
	rowHeight := value.Size + rowGap
	valueWidth := l.cursor.Width - 2*padding - labelWidth

	l.surface.SetFont(value)
	wrapped := make([][]string, len(fields))
	rows := 0
	for i, field := range fields {
		wrapped[i] = l.cardLines(field.Value, valueWidth)
		rows += len(wrapped[i])
	}
	height := float64(rows)*rowHeight + 2*padding

	l.EnsureSpace(height)
	top := l.cursor.Y
	l.surface.FillRect(l.cursor.Left, top, l.cursor.Width, height, colorCard)

	y := top + padding
	for i, field := range fields {
		l.surface.SetFont(label)
		l.surface.Text(l.cursor.Left+padding, y+value.Size, field.Label, colorMuted)
		l.surface.SetFont(value)
		for _, line := range wrapped[i] {
			l.surface.Text(l.cursor.Left+padding+labelWidth, y+value.Size, line, colorInk)
			y += rowHeight
		}
	}
	l.cursor.Advance(height + 8)
}

func (l *Layout) cardLines(value string, width float64) []string {
	lines := Wrap(value, width, l.surface.StringWidth)
	if len(lines) == 0 {
		return []string{"-"}
	}
	if len(lines) > MaxCardLines {
		lines = lines[:MaxCardLines]
		lines[MaxCardLines-1] = truncateToWidth(lines[MaxCardLines-1], "...", width, l.surface.StringWidth)
	}
	return lines
}

// DrawDivider draws a horizontal rule across the content width.
func (l *Layout) DrawDivider() {
	const space = 14.0
	l.EnsureSpace(space)
	y := l.cursor.Y + space/2
	l.surface.Line(l.cursor.Left, y, l.cursor.Left+l.cursor.Width, y, colorRule, 0.75)
	l.cursor.Advance(space)
}

// DrawRecord renders one record. Every record after the first begins on a fresh page.
func (l *Layout) DrawRecord(index, total int, record thread.Record) {
	if index > 0 || l.cursor.Page == 0 {
		l.NewPage()
	}
	l.recordPages = append(l.recordPages, l.cursor.Page)

	l.DrawWrapped(fmt.Sprintf("Message %d of %d", index+1, total), l.headingFont(), colorAccent)
	l.Gap(4)
	l.DrawMetadataCard([]Field{
		{Label: "File", Value: record.FileName},
		{Label: "From", Value: record.From},
		{Label: "To", Value: record.To},
		{Label: "Date", Value: record.Date},
		{Label: "Subject", Value: record.Subject},
	})
	l.DrawDivider()
	l.DrawWrapped("Body", l.labelFont(), colorMuted)
	l.Gap(2)
	for _, paragraph := range Paragraphs(record.Body) {
		l.DrawWrapped(paragraph, l.bodyFont(), colorInk)
		l.Gap(l.opts.ParagraphGap)
	}
}

// DrawDocument renders the title block, every record and finally the footers.
func (l *Layout) DrawDocument(records []thread.Record) {
	l.NewPage()
	l.DrawWrapped(l.opts.Title, l.titleFont(), colorInk)
	summary := fmt.Sprintf("%d message(s)", len(records))
	if generated := l.generatedLabel(); generated != "" {
		summary += "  |  " + generated
	}
	l.DrawWrapped(summary, l.chromeFont(), colorMuted)
	l.Gap(12)

	if len(records) == 0 {
		l.DrawWrapped("No messages.", l.bodyFont(), colorMuted)
	}
	for i, record := range records {
		l.DrawRecord(i, len(records), record)
	}
	l.stampFooters()
}

// Paragraphs splits a body on blank lines and joins each paragraph into a single line.
// An empty body yields the placeholder paragraph.
func Paragraphs(body string) []string {
	var paragraphs []string
	for _, block := range paragraphBreak.Split(body, -1) {
		if joined := strings.Join(strings.Fields(block), " "); joined != "" {
			paragraphs = append(paragraphs, joined)
		}
	}
	if len(paragraphs) == 0 {
		return []string{thread.Placeholder}
	}
	return paragraphs
}

func (l *Layout) drawRunningHeader() {
	m := l.opts.Margin
	width, _ := l.surface.PageSize()
	font := l.chromeFont()
	l.surface.SetFont(font)
	baseline := m + font.Size

	l.surface.Text(m, baseline, l.opts.Title, colorMuted)
	if generated := l.generatedLabel(); generated != "" {
		l.surface.Text(width-m-l.surface.StringWidth(generated), baseline, generated, colorMuted)
	}
	ruleY := m + l.opts.HeaderHeight - 10
	l.surface.Line(m, ruleY, width-m, ruleY, colorRule, 0.5)
}

// stampFooters revisits every page once the total is known and draws the brand text
// centered and "Page N of TOTAL" right-aligned.
func (l *Layout) stampFooters() {
	total := l.surface.PageCount()
	width, height := l.surface.PageSize()
	m := l.opts.Margin
	font := l.chromeFont()
	ruleY := height - m - l.opts.FooterHeight + 10
	baseline := height - m

	for page := 1; page <= total; page++ {
		l.surface.SetPage(page)
		l.surface.SetFont(font)
		l.surface.Line(m, ruleY, width-m, ruleY, colorRule, 0.5)
		if l.opts.Brand != "" {
			l.surface.Text((width-l.surface.StringWidth(l.opts.Brand))/2, baseline, l.opts.Brand, colorMuted)
		}
		label := fmt.Sprintf("Page %d of %d", page, total)
		l.surface.Text(width-m-l.surface.StringWidth(label), baseline, label, colorMuted)
	}
}
