package forum

import "github.com/CosmoTheDev/forumrelay/models"

// Sample names accepted by the simulate endpoints and `forumrelay send --simulate`.
const (
	SampleUserPost      = "user-post"
	SampleAdminApproval = "admin-approval"
	SampleUserReply     = "user-reply"
)

// SampleNames lists the canned payloads in display order.
var SampleNames = []string{SampleUserPost, SampleAdminApproval, SampleUserReply}

const (
	sampleForum    = "智教联盟论坛"
	sampleAvatar   = "https://forum.smart-teach.cn/assets/favicon-v4ksoaxf.png"
	sampleAuthor   = "TestUser"
	sampleAuthorAt = "https://forum.smart-teach.cn/u/TestUser"
)

// Sample returns a fresh copy of a canned forum webhook and the kind of the
// route it belongs to.
func Sample(name string) (*models.SlackWebhook, models.ForumEventKind, bool) {
	var (
		att  models.SlackAttachment
		kind models.ForumEventKind
	)
	switch name {
	case SampleUserPost:
		kind = models.KindUserPostApproval
		att = models.SlackAttachment{
			Fallback:   "[upl-image-preview uuid=1c68879b-33c9-49a6-89c5-6cf8facc2a67 url=https://forum.smart-teach.cn/assets/files/2025-08-29/screenshot.jpg alt={TEXT?}]\n - TestUser",
			Color:      "fed330",
			Title:      "发布主题 `测试帖子标题`",
			TitleLink:  "https://forum.smart-teach.cn/d/611",
			Text:       strPtr("这是一个测试帖子的内容..."),
			AuthorIcon: "https://forum.smart-teach.cn/assets/avatars/ngrK2izwcquevB8u.png",
		}
	case SampleAdminApproval:
		kind = models.KindAdminPostApproval
		att = models.SlackAttachment{
			Fallback:   " - TestUser",
			Color:      "26de81",
			Title:      "在 `测试帖子标题` 中审核通过的帖子",
			TitleLink:  "https://forum.smart-teach.cn/d/612/1",
			AuthorIcon: "https://forum.smart-teach.cn/assets/avatars/QkZ5vVgZJNzI25dY.png",
		}
	case SampleUserReply:
		kind = models.KindUserReply
		att = models.SlackAttachment{
			Fallback:   "测试回复内容 - TestUser",
			Color:      "26de81",
			Title:      "新回复于 `测试帖子标题`",
			TitleLink:  "https://forum.smart-teach.cn/d/612/2",
			Text:       strPtr("这是一个测试回复的内容"),
			AuthorIcon: "https://forum.smart-teach.cn/assets/avatars/QkZ5vVgZJNzI25dY.png",
		}
	default:
		return nil, "", false
	}
	att.Footer = sampleForum
	att.AuthorName = sampleAuthor
	att.AuthorLink = sampleAuthorAt
	return &models.SlackWebhook{
		Username:    sampleForum,
		AvatarURL:   sampleAvatar,
		Attachments: []models.SlackAttachment{att},
	}, kind, true
}

func strPtr(s string) *string { return &s }
