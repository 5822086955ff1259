package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTelegramHTMLKeepsOnlyBoldAndItalic(t *testing.T) {
	in := `<h2>标题</h2><p>这是<strong>重点</strong>和<em>强调</em>，<a href="https://x.com">链接</a></p><script>alert(1)</script>`

	out := SanitizeTelegramHTML(in)

	assert.Equal(t, "标题\n这是<b>重点</b>和<i>强调</i>，链接", out)
}

func TestSanitizeTelegramHTMLConvertsMarkdown(t *testing.T) {
	in := "## 技术要点\n* **Kubernetes** 发布新版本\n- 支持 *sidecar* 容器"

	out := SanitizeTelegramHTML(in)

	assert.Equal(t, "技术要点\n<b>Kubernetes</b> 发布新版本\n支持 <i>sidecar</i> 容器", out)
}

func TestSanitizeTelegramHTMLEscapesText(t *testing.T) {
	out := SanitizeTelegramHTML("a < b && c > d")

	assert.Equal(t, "a &lt; b &amp;&amp; c &gt; d", out)
}

func TestSanitizeTelegramHTMLCollapsesBlankLines(t *testing.T) {
	out := SanitizeTelegramHTML("<b>[要点]</b>\n\n\n\n内容")

	assert.Equal(t, "<b>[要点]</b>\n\n内容", out)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello world & more", StripHTML("<p>Hello <b>world</b></p>\n<p>&amp; more</p>"))
	assert.Equal(t, "plain text", StripHTML("  plain \n text "))
	assert.Equal(t, "", StripHTML(""))
}
