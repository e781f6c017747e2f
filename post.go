package sina2html

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

// Post 表示一篇解析完成的博客文章。字段缺失时保留空值，
// 只有正文缺失会导致文章被跳过。
type Post struct {
	URL         string   `toml:"url" json:"url"`                   // 文章原始链接
	StableID    string   `toml:"stable_id" json:"stable_id"`       // 稳定ID，用于去重和文件名
	Title       string   `toml:"title" json:"title"`               // 文章标题
	PublishedAt string   `toml:"published_at" json:"published_at"` // 发布时间(规范化失败时保留原文)
	Category    string   `toml:"category" json:"category"`         // 分类
	Tags        []string `toml:"tags" json:"tags"`                 // 标签集合(已去重)
	ContentHTML string   `toml:"content_html" json:"content_html"` // 正文HTML片段
	Images      []Image  `toml:"images" json:"images"`             // 正文引用的图片，按文档顺序
}

// Image 表示正文引用的一张图片
type Image struct {
	URL        string `toml:"url" json:"url"`               // 原始图片URL(绝对地址)
	Local      string `toml:"local" json:"local"`           // 本地文件名(下载后填充)
	Alt        string `toml:"alt" json:"alt"`               // 图片描述
	Downloaded bool   `toml:"downloaded" json:"downloaded"` // 是否已下载
}

// PostRef 分页抓取阶段发现的文章引用
type PostRef struct {
	URL      string // 绝对URL
	StableID string // 派生的稳定ID
}

var articleIDPattern = regexp.MustCompile(`(blog_[0-9a-z]+)\.html`)

// StableIDFromURL derives a deterministic identifier for a post URL.
// Sina article URLs carry a blog_<hex> token which is used directly;
// anything else falls back to a SHA-1 prefix of the normalized URL.
func StableIDFromURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if m := articleIDPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}

	normalized := strings.TrimRight(rawURL, "/")
	sum := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])[:12]
}

// NewPostRef 根据URL创建文章引用
func NewPostRef(rawURL string) PostRef {
	return PostRef{URL: rawURL, StableID: StableIDFromURL(rawURL)}
}
