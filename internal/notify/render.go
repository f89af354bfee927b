package notify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/CosmoTheDev/forumrelay/models"
)

// maxContentRunes is the longest body excerpt included in a chat message.
const maxContentRunes = 100

var (
	imagePreviewRe = regexp.MustCompile(`\[upl-image-preview[^\]]*\]`)
	imageTagRe     = regexp.MustCompile(`\[img[^\]]*\]`)
	urlTagRe       = regexp.MustCompile(`\[url[^\]]*\]`)
	closingTagRe   = regexp.MustCompile(`\[/[^\]]*\]`)
	newlinesRe     = regexp.MustCompile(`\n+`)
)

const imagePlaceholder = "[图片]"

// kindLabel returns the header emoji and label for kind.
func kindLabel(kind models.ForumEventKind) (emoji, label string) {
	switch kind {
	case models.KindUserPostApproval:
		return "📝", "新帖发布"
	case models.KindAdminPostApproval:
		return "✅", "帖子审核通过"
	case models.KindUserReply:
		return "💬", "新回复"
	default:
		return "📢", "论坛动态"
	}
}

// Render formats evt as the multi-line group message:
//
//	<emoji> 【<label>】
//	📖 标题：<title>
//	👤 作者：<author>
//	📄 内容：<content>   (only when the cleaned content is non-empty)
//	🔗 链接：<link>
func Render(evt models.ForumEvent) string {
	emoji, label := kindLabel(evt.Kind)

	var b strings.Builder
	b.WriteString(emoji + " 【" + label + "】\n")
	b.WriteString("📖 标题：" + evt.Title + "\n")
	b.WriteString("👤 作者：" + evt.Author + "\n")
	if content := CleanContent(evt.Content); content != "" {
		b.WriteString("📄 内容：" + truncateRunes(content, maxContentRunes) + "\n")
	}
	b.WriteString("🔗 链接：" + evt.Link)
	return b.String()
}

// CleanContent strips forum BBCode markers and folds newlines so a post body
// fits on one chat line. Image markers become a placeholder.
func CleanContent(s string) string {
	s = imagePreviewRe.ReplaceAllString(s, imagePlaceholder)
	s = imageTagRe.ReplaceAllString(s, imagePlaceholder)
	s = urlTagRe.ReplaceAllString(s, "")
	s = closingTagRe.ReplaceAllString(s, "")
	s = newlinesRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
