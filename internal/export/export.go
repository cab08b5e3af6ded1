package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ryom080502-dev/audioGIJI6/internal/config"
	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
	"github.com/ryom080502-dev/audioGIJI6/internal/logger"
)

const (
	documentHeading  = "議事録"
	contentHeading   = "内容"
	checklistHeading = "【💡確認事項】"
	footerTimeFormat = "2006年01月02日 15:04"
)

// metaRow pairs a label with its metadata value for the document header.
type metaRow struct {
	label string
	value string
}

func metaRows(meta domain.Metadata) []metaRow {
	return []metaRow{
		{label: "作成日", value: meta.CreatedDate},
		{label: "作成者", value: meta.Creator},
		{label: "お客様名", value: meta.CustomerName},
		{label: "打合せ場所", value: meta.MeetingPlace},
	}
}

// Adapter renders merged minutes into downloadable Word and PDF documents.
// It holds no state between calls; every export is built fresh from the
// request payload.
type Adapter struct {
	fontPath string
	log      *logger.Logger
}

func NewAdapter(cfg config.Config, log *logger.Logger) *Adapter {
	return &Adapter{
		fontPath: cfg.PDFFontPath,
		log:      log.WithComponent("export"),
	}
}

// Render writes the requested document to outPath and returns the filename
// the download should carry.
func (a *Adapter) Render(req domain.ExportRequest, outPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("%w: ensure export directory: %v", domain.ErrRender, err)
	}

	title := DocumentTitle(req.Metadata)
	body := documentBody(req.Summary, req.SelectedItems)

	switch strings.ToLower(req.Format) {
	case domain.FormatWord:
		if err := renderWord(title, body, req.Metadata, outPath); err != nil {
			return "", fmt.Errorf("%w: word: %v", domain.ErrRender, err)
		}
	case domain.FormatPDF:
		if err := a.renderPDF(title, body, req.Metadata, outPath); err != nil {
			return "", fmt.Errorf("%w: pdf: %v", domain.ErrRender, err)
		}
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidInput, req.Format)
	}

	return DownloadName(req.Metadata, req.Format), nil
}

// documentBody appends the selected confirmation items to the summary under
// the checklist heading. An empty selection leaves the summary untouched.
func documentBody(summary string, selected []string) string {
	if len(selected) == 0 {
		return summary
	}

	var b strings.Builder
	b.WriteString(summary)
	b.WriteString("\n\n")
	b.WriteString(checklistHeading)
	b.WriteString("\n")
	for _, item := range selected {
		b.WriteString("• ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}

// DocumentTitle is the heading rendered at the top of the document. Date
// separators are dropped so the same string stays filesystem friendly when
// it doubles as the download name.
func DocumentTitle(meta domain.Metadata) string {
	return fmt.Sprintf("%s_%s_%s", compactDate(meta.CreatedDate), meta.CustomerName, documentHeading)
}

// DownloadName builds the attachment filename from the document title and
// the format's extension.
func DownloadName(meta domain.Metadata, format string) string {
	ext := "docx"
	if strings.ToLower(format) == domain.FormatPDF {
		ext = "pdf"
	}
	return DocumentTitle(meta) + "." + ext
}

func compactDate(date string) string {
	return strings.NewReplacer("-", "", "/", "").Replace(date)
}

type lineKind int

const (
	lineHeading lineKind = iota
	lineBullet
	lineText
)

var bulletPrefixes = []string{"・", "• ", "- ", "* "}

// classifyLine tells the writers how one trimmed body line renders:
// ## lines become headings, bullet lines lose their glyph, everything
// else is a plain paragraph.
func classifyLine(line string) (lineKind, string) {
	if strings.HasPrefix(line, "##") {
		return lineHeading, strings.TrimSpace(strings.ReplaceAll(line, "##", ""))
	}
	for _, prefix := range bulletPrefixes {
		if strings.HasPrefix(line, prefix) {
			return lineBullet, strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return lineText, line
}
