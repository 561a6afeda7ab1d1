package report

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gomutex/godocx"

	"github.com/voxhall/audio-insights/internal/common"
)

const (
	fontName  = "Calibri"
	fontSize  = 11
	titleSize = 16
)

// Renderer converts analysis text into a DOCX byte stream. It is a thin
// wrapper over the document library; the pipeline treats it as a black
// box that turns text into a report artifact.
type Renderer struct{}

func NewRenderer() Renderer { return Renderer{} }

// Render produces a document titled title with one paragraph per line
// of text. Blank lines become empty paragraphs so the source layout
// survives.
func (Renderer) Render(title, text string) ([]byte, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, common.WrapError(err, "create report document")
	}

	p := doc.AddParagraph("")
	p.AddText(title).Font(fontName).Size(titleSize).Color("000000").Bold(true)
	doc.AddParagraph("")

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			doc.AddParagraph("")
			continue
		}
		p := doc.AddParagraph("")
		p.AddText(line).Font(fontName).Size(fontSize).Color("000000")
	}

	// The document library only writes to paths; stage through a temp
	// file to hand the caller a byte stream.
	tmp, err := os.CreateTemp("", "report-*.docx")
	if err != nil {
		return nil, common.WrapError(err, "create temp report file")
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(path)

	if err := doc.SaveTo(path); err != nil {
		return nil, common.WrapError(err, "write report document")
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, common.WrapError(err, "read report document")
	}
	return content, nil
}
