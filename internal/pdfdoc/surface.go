package pdfdoc

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// FontFamily is the embedded UTF-8 face every Layout font uses. It covers Latin, Greek and
// Cyrillic; characters outside it are drawn as the font's missing glyph.
const FontFamily = "Go"

// Font selects a face and size in points.
type Font struct {
	Family string
	Style  string
	Size   float64
}

// Color is an RGB triple with components in 0..255.
type Color struct {
	R, G, B int
}

// Surface is the drawing target of a Layout. Pages are 1-based and append-only;
// SetPage revisits an existing page. Coordinates have their origin at the top-left
// corner of the page and y grows downward.
type Surface interface {
	AddPage()
	SetPage(n int)
	PageCount() int
	PageSize() (width, height float64)
	SetFont(font Font)
	StringWidth(text string) float64
	Text(x, y float64, text string, color Color)
	FillRect(x, y, w, h float64, color Color)
	Line(x1, y1, x2, y2 float64, color Color, width float64)
}

// PDFSurface draws on an fpdf document with the embedded Go fonts, so text is written as
// UTF-8 rather than through a single-byte code page.
type PDFSurface struct {
	pdf   *fpdf.Fpdf
	font  Font
	stale bool
}

func NewPDFSurface(title string, created time.Time) *PDFSurface {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetTitle(title, true)
	pdf.SetCreator("emlconvert", true)
	if !created.IsZero() {
		pdf.SetCreationDate(created)
	}
	pdf.AddUTF8FontFromBytes(FontFamily, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(FontFamily, "B", gobold.TTF)
	return &PDFSurface{pdf: pdf}
}

func (s *PDFSurface) AddPage() {
	s.pdf.AddPage()
	s.stale = true
}

func (s *PDFSurface) SetPage(n int) {
	s.pdf.SetPage(n)
	s.stale = true
}

func (s *PDFSurface) PageCount() int {
	return s.pdf.PageCount()
}

func (s *PDFSurface) PageSize() (float64, float64) {
	return s.pdf.GetPageSize()
}

// SetFont re-emits the font after a page switch: fpdf skips a SetFont that matches its
// cached state, but a revisited page's content stream may end with another font.
func (s *PDFSurface) SetFont(font Font) {
	if s.stale {
		s.pdf.SetFont(font.Family, font.Style, font.Size+1)
		s.stale = false
	}
	s.pdf.SetFont(font.Family, font.Style, font.Size)
	s.font = font
}

func (s *PDFSurface) StringWidth(text string) float64 {
	return s.pdf.GetStringWidth(text)
}

func (s *PDFSurface) Text(x, y float64, text string, color Color) {
	s.pdf.SetTextColor(color.R, color.G, color.B)
	s.pdf.SetFillColor(color.R, color.G, color.B)
	s.pdf.Text(x, y, text)
}

func (s *PDFSurface) FillRect(x, y, w, h float64, color Color) {
	s.pdf.SetFillColor(color.R, color.G, color.B)
	s.pdf.Rect(x, y, w, h, "F")
}

func (s *PDFSurface) Line(x1, y1, x2, y2 float64, color Color, width float64) {
	s.pdf.SetDrawColor(color.R, color.G, color.B)
	s.pdf.SetLineWidth(width)
	s.pdf.Line(x1, y1, x2, y2)
}

// Output writes the finished document.
func (s *PDFSurface) Output(w io.Writer) error {
	if err := s.pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := s.pdf.Output(w); err != nil {
		return fmt.Errorf("output pdf: %w", err)
	}
	return nil
}
