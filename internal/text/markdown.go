package text

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// FromMarkdown renders markdown as plain prose. Blocks are separated by
// blank lines so paragraph splitting still sees them; code blocks, raw HTML
// and link targets are dropped.
func FromMarkdown(markdown string) string {
	md := goldmark.New()
	source := []byte(markdown)
	doc := md.Parser().Parse(gmtext.NewReader(source))

	w := &proseWriter{source: source}
	w.walk(doc)
	return strings.TrimSpace(w.buf.String())
}

type proseWriter struct {
	source []byte
	buf    strings.Builder
}

func (w *proseWriter) walk(node ast.Node) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML, *ast.ThematicBreak:
		return

	case *ast.Text:
		w.buf.Write(n.Segment.Value(w.source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			w.buf.WriteByte(' ')
		}
		return

	case *ast.String:
		w.buf.Write(n.Value)
		return

	case *ast.AutoLink:
		w.buf.Write(n.Label(w.source))
		return

	case *ast.Heading, *ast.Paragraph:
		w.block(n, ".\n\n")
		return

	case *ast.ListItem:
		w.block(n, ".\n")
		return

	case *ast.List:
		w.children(n)
		w.buf.WriteString("\n")
		return
	}

	w.children(node)
}

func (w *proseWriter) children(node ast.Node) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.walk(c)
	}
}

// block renders node on its own and closes it with terminator, dropping
// the period when the block already ends in punctuation.
func (w *proseWriter) block(node ast.Node, terminator string) {
	inner := &proseWriter{source: w.source}
	inner.children(node)
	content := strings.TrimSpace(inner.buf.String())
	if content == "" {
		return
	}

	w.buf.WriteString(content)
	if strings.ContainsRune(".!?:;", rune(content[len(content)-1])) {
		terminator = terminator[1:]
	}
	w.buf.WriteString(terminator)
}
