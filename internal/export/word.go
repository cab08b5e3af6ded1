package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
)

const (
	wordFont = "Yu Gothic"

	wordTitleSize   uint64 = 18
	wordHeadingSize uint64 = 14
	wordSubheadSize uint64 = 12
	wordBodySize    uint64 = 11
	wordMetaSize    uint64 = 10
	wordFooterSize  uint64 = 9
)

// renderWord writes the minutes as a .docx document: the derived title, the
// metadata block, the body with headings and bullets, and a timestamp
// footer.
func renderWord(title, body string, meta domain.Metadata, outPath string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("new document: %w", err)
	}

	addWordRun(doc.AddParagraph(""), title, true, wordTitleSize)
	doc.AddParagraph("")

	for _, row := range metaRows(meta) {
		p := doc.AddParagraph("")
		p.AddText(row.label+": ").Font(wordFont).Size(wordMetaSize).Color("000000").Bold(true)
		p.AddText(row.value).Font(wordFont).Size(wordMetaSize).Color("000000")
	}

	doc.AddParagraph("")
	addWordRun(doc.AddParagraph(""), contentHeading, true, wordHeadingSize)

	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		kind, text := classifyLine(line)
		switch kind {
		case lineHeading:
			addWordRun(doc.AddParagraph(""), text, true, wordSubheadSize)
		case lineBullet:
			addWordRun(doc.AddParagraph(""), "・"+text, false, wordBodySize)
		default:
			addWordRun(doc.AddParagraph(""), text, false, wordBodySize)
		}
	}

	doc.AddParagraph("")
	footer := doc.AddParagraph("")
	footer.AddText("作成日時: " + time.Now().Format(footerTimeFormat)).
		Font(wordFont).Size(wordFooterSize).Color("808080")

	return doc.SaveTo(outPath)
}

func addWordRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(wordFont).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
