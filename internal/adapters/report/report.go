// Package report renders the meeting schedule as a PDF.
package report

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/internal/domain/pairing"
	"github.com/okian/onetoone/pkg/metrics"
)

// Layout in millimetres on A4 portrait.
const (
	pageCenter       = 105.0
	marginLeft       = 20.0
	marginRight      = 190.0
	topY             = 20.0
	textWidth        = 170.0
	meetingBreakY    = 270.0
	sectionBreakY    = 250.0
	footerY          = 287.0
	meetingLineH     = 6.0
	maxFilenameChars = 200
	fallbackFilename = "incontri"
	font             = "Helvetica"
)

var (
	unsafeChars = regexp.MustCompile(`[/\\:*?"<>|]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// Render writes the schedule of info and meetings to w.
func Render(w io.Writer, info model.EventInfo, meetings []model.Meeting, opts ...Option) error {
	start := time.Now()
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("onetoone", true)
	pdf.SetCreationDate(o.now())
	pdf.SetTitle(info.Title, true)

	l := &layout{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.AddPage()

	y := l.header(info)
	for i, round := range model.AllRounds() {
		if i > 0 && y > sectionBreakY {
			pdf.AddPage()
			y = topY
		}
		y = l.section(round, pairing.MeetingsInRound(meetings, round), y)
	}
	l.footers(o.now())

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	metrics.RecordReportRendered(float64(time.Since(start).Milliseconds()))
	return nil
}

type layout struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// header draws the centered title block and the separator, returning the next y.
func (l *layout) header(info model.EventInfo) float64 {
	y := topY

	l.pdf.SetFont(font, "B", 22)
	title := l.split(info.Title)
	for i, line := range title {
		l.centered(line, topY+float64(i)*8)
	}
	y += float64(len(title)) * 8

	l.pdf.SetFont(font, "", 12)
	desc := l.split(info.Description)
	for i, line := range desc {
		l.centered(line, y+float64(i)*6)
	}
	y += float64(len(desc)) * 6

	if info.Date != "" {
		l.pdf.SetFont(font, "", 11)
		l.centered("Data: "+info.Date, y+2)
		y += 8
	}

	y += 5
	l.pdf.SetLineWidth(0.5)
	l.pdf.Line(marginLeft, y, marginRight, y)
	return y + 10
}

func (l *layout) section(round model.Round, meetings []model.Meeting, y float64) float64 {
	l.pdf.SetFont(font, "B", 16)
	l.text(fmt.Sprintf("Turno %d", int(round)), marginLeft, y)
	y += 8

	l.pdf.SetFont(font, "", 10)
	l.text(countLabel(len(meetings)), marginLeft, y)
	y += 8

	if len(meetings) == 0 {
		l.pdf.SetFont(font, "I", 10)
		l.text("Nessun incontro programmato", marginLeft, y)
		return y + 10
	}

	l.pdf.SetFont(font, "", 10)
	for i, m := range meetings {
		if y > meetingBreakY {
			l.pdf.AddPage()
			y = topY
		}
		for _, line := range l.split(fmt.Sprintf("%d. %s con %s", i+1, m.Person1, m.Person2)) {
			l.text(line, marginLeft, y)
			y += meetingLineH
		}
	}
	return y + 5
}

// footers stamps every page once the page count is known.
func (l *layout) footers(now time.Time) {
	total := l.pdf.PageCount()
	date := now.Format("02/01/2006")
	for i := 1; i <= total; i++ {
		l.pdf.SetPage(i)
		l.pdf.SetFont(font, "", 8)
		l.centered(fmt.Sprintf("Generato il %s - Pagina %d di %d", date, i, total), footerY)
	}
}

// split wraps s at the text width. Widths are measured on the cp1252 text the
// core fonts draw, so ’ “ ” € keep their own glyphs. Words wider than a line
// are cut.
func (l *layout) split(s string) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(s) {
		next := word
		if line != "" {
			next = line + " " + word
		}
		if l.width(next) <= textWidth {
			line = next
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
		line = word
		for l.width(line) > textWidth {
			cut := l.fit(line)
			lines = append(lines, line[:cut])
			line = line[cut:]
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// fit returns the byte length of the longest rune prefix of s within the text
// width, at least one rune.
func (l *layout) fit(s string) int {
	cut := 0
	for cut < len(s) {
		_, size := utf8.DecodeRuneInString(s[cut:])
		if cut > 0 && l.width(s[:cut+size]) > textWidth {
			break
		}
		cut += size
	}
	return cut
}

func (l *layout) width(s string) float64 {
	return l.pdf.GetStringWidth(l.tr(s))
}

func (l *layout) text(s string, x, y float64) {
	l.pdf.Text(x, y, l.tr(s))
}

func (l *layout) centered(s string, y float64) {
	enc := l.tr(s)
	l.pdf.Text(pageCenter-l.pdf.GetStringWidth(enc)/2, y, enc)
}

func countLabel(n int) string {
	if n == 1 {
		return "1 incontro"
	}
	return fmt.Sprintf("%d incontri", n)
}

// Filename derives the download name from the title and the export date.
func Filename(title string, now time.Time) string {
	name := unsafeChars.ReplaceAllString(title, "_")
	name = spaceRuns.ReplaceAllString(name, "_")
	if r := []rune(name); len(r) > maxFilenameChars {
		name = string(r[:maxFilenameChars])
	}
	if strings.Trim(name, "_") == "" {
		name = fallbackFilename
	}
	return name + "_" + now.Format(time.DateOnly) + ".pdf"
}
