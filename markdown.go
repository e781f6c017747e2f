package sina2html

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// MarkdownExporter 将文章正文转换为Markdown导出。
// 转换在正文HTML改写之前进行，图片链接之后由goldmark的AST遍历
// 改写为本地路径，非图片链接保持不变。
type MarkdownExporter struct{}

// NewMarkdownExporter 创建Markdown导出器
func NewMarkdownExporter() *MarkdownExporter {
	return &MarkdownExporter{}
}

// Render 生成一篇文章的Markdown文档
func (e *MarkdownExporter) Render(post *Post) (string, error) {
	body, err := htmltomarkdown.ConvertString(post.ContentHTML)
	if err != nil {
		return "", NewParseError("转换Markdown失败", err)
	}

	localByURL := make(map[string]string, len(post.Images))
	for _, img := range post.Images {
		if img.Downloaded && img.Local != "" {
			localByURL[img.URL] = img.Local
		}
	}
	if len(localByURL) > 0 {
		body = string(rewriteMarkdownImages([]byte(body), localByURL))
	}

	var md strings.Builder
	title := post.Title
	if title == "" {
		title = "无标题"
	}
	md.WriteString(fmt.Sprintf("# %s\n\n", title))

	if post.PublishedAt != "" {
		md.WriteString(fmt.Sprintf("- 时间: %s\n", post.PublishedAt))
	}
	if post.Category != "" {
		md.WriteString(fmt.Sprintf("- 分类: %s\n", post.Category))
	}
	if len(post.Tags) > 0 {
		md.WriteString(fmt.Sprintf("- 标签: %s\n", strings.Join(post.Tags, ", ")))
	}
	md.WriteString("\n----\n\n")
	md.WriteString(strings.TrimSpace(body))
	md.WriteString(fmt.Sprintf("\n\n[原文链接](%s)\n", post.URL))

	return md.String(), nil
}

// rewriteMarkdownImages 将Markdown中已下载图片的目标地址替换为本地相对
// 路径。先用goldmark的AST遍历确定哪些URL确实是图片节点的目标，再做精确
// 替换，避免误伤指向同一URL的普通链接。
func rewriteMarkdownImages(mdDoc []byte, localByURL map[string]string) []byte {
	md := goldmark.New(goldmark.WithParserOptions(parser.WithAutoHeadingID()))
	doc := md.Parser().Parse(text.NewReader(mdDoc))

	targets := make(map[string]string)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := n.(*ast.Image); ok {
			dest := string(img.Destination)
			if local, ok := localByURL[dest]; ok {
				targets[dest] = local
			}
		}
		return ast.WalkContinue, nil
	})

	out := mdDoc
	for remote, local := range targets {
		pattern := regexp.MustCompile(`(!\[[^\]]*\]\()` + regexp.QuoteMeta(remote) + `(\))`)
		out = pattern.ReplaceAll(out, []byte("${1}"+imageRelPrefix+local+"${2}"))
	}
	return out
}
