package service

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	mdBold       = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)
	mdItalic     = regexp.MustCompile(`(^|[^*\w])\*([^*\s][^*\n]*?)\*`)
	mdHeading    = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	mdBullet     = regexp.MustCompile(`(?m)^[ \t]*[*•-][ \t]+`)
	extraNewline = regexp.MustCompile(`\n{3,}`)
)

// SanitizeTelegramHTML 把模型输出整理为Telegram可接受的HTML
//
// 结果只包含 <b> 和 <i> 两种标签，其余文本都经过转义；markdown 粗体转为
// <b>，<strong>/<em> 统一为 <b>/<i>，其他标签只保留文字内容。
func SanitizeTelegramHTML(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = mdBold.ReplaceAllString(s, "<b>$1</b>")
	s = mdItalic.ReplaceAllString(s, "$1<i>$2</i>")
	s = mdHeading.ReplaceAllString(s, "")
	s = mdBullet.ReplaceAllString(s, "")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return html.EscapeString(strings.TrimSpace(s))
	}

	var b strings.Builder
	for _, n := range doc.Find("body").Nodes {
		renderChildren(&b, n)
	}

	out := extraNewline.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
}

func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
		return
	case html.ElementNode:
	default:
		renderChildren(b, n)
		return
	}

	switch n.DataAtom {
	case atom.B, atom.Strong:
		wrap(b, n, "b")
	case atom.I, atom.Em:
		wrap(b, n, "i")
	case atom.Br:
		b.WriteString("\n")
	case atom.P, atom.Div, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4:
		renderChildren(b, n)
		b.WriteString("\n")
	case atom.Script, atom.Style:
		// 丢弃
	default:
		renderChildren(b, n)
	}
}

func wrap(b *strings.Builder, n *html.Node, tag string) {
	var inner strings.Builder
	renderChildren(&inner, n)
	if strings.TrimSpace(inner.String()) == "" {
		b.WriteString(inner.String())
		return
	}
	b.WriteString("<" + tag + ">")
	b.WriteString(inner.String())
	b.WriteString("</" + tag + ">")
}

// StripHTML 去掉HTML标签，返回压缩空白后的纯文本
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
