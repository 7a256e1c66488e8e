package runner

import (
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/casebook/casestudy"
	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

func writeReport(dir string, res *casestudy.Result) error {
	if err := writeMarkdown(dir, "report", res.Title, res.Markdown()); err != nil {
		return err
	}
	res.Artifacts = append(res.Artifacts, "report.md", "report.html")
	return nil
}

// writeMarkdown writes <base>.md and its HTML rendering <base>.html into dir.
func writeMarkdown(dir, base, title, md string) error {
	if err := os.WriteFile(filepath.Join(dir, base+".md"), []byte(md), 0o644); err != nil {
		return errors.Wrapf(err, "write %s.md", base)
	}
	if err := os.WriteFile(filepath.Join(dir, base+".html"), renderHTML(title, []byte(md)), 0o644); err != nil {
		return errors.Wrapf(err, "write %s.html", base)
	}
	return nil
}

// renderHTML converts markdown to a complete HTML page. A parser holds state, so a new
// one is built per document.
func renderHTML(title string, md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML(md, p, renderer)
}
