package sina2html

import (
	"fmt"
	"html/template"
	"strings"
)

// ProgressState 备份进度快照，写入 progress.json / progress.html
type ProgressState struct {
	Phase   string `json:"phase"`   // collecting / downloading / done
	Current int    `json:"current"` // 已完成数量
	Total   int    `json:"total"`   // 总数量
	Title   string `json:"title"`   // 当前文章标题
	URL     string `json:"url,omitempty"`
}

// Percent 完成百分比
func (s ProgressState) Percent() int {
	if s.Total <= 0 {
		return 0
	}
	return s.Current * 100 / s.Total
}

var postPageTemplate = template.Must(template.New("post").Parse(`<!doctype html>
<html lang="zh-CN">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{if .Title}}{{.Title}}{{else}}无标题{{end}}</title>
  <style>
    body { font-family: "Segoe UI", "PingFang SC", sans-serif; margin: 0; background: #f6f7fb; color: #1f2430; }
    .wrap { max-width: 920px; margin: 40px auto; background: #fff; padding: 32px 40px; border-radius: 12px; }
    h1 { margin: 0 0 12px; font-size: 28px; }
    .meta { color: #5c667a; font-size: 14px; }
    .meta span { margin-right: 16px; }
    .tag { display: inline-block; padding: 3px 8px; margin: 0 6px 6px 0; background: #eef1f7; border-radius: 999px; font-size: 12px; color: #4b5563; }
    .content { margin-top: 24px; line-height: 1.8; font-size: 16px; }
    .content img { max-width: 100%; height: auto; }
    a { color: #3366ff; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>{{if .Title}}{{.Title}}{{else}}无标题{{end}}</h1>
    <div class="meta">
      {{- if .PublishedAt}}<span>{{.PublishedAt}}</span>{{end}}
      {{- if .Category}}<span>分类: {{.Category}}</span>{{end}}
    </div>
    <div class="tags">{{range .Tags}}<span class="tag">{{.}}</span>{{end}}</div>
    <div class="content">{{.Content}}</div>
    <p><a href="{{.URL}}" target="_blank" rel="noopener">原文链接</a></p>
  </div>
</body>
</html>
`))

var indexPageTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="zh-CN">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>新浪博客备份</title>
  <style>
    body { font-family: "Segoe UI", "PingFang SC", sans-serif; margin: 0; background: #f2f4f8; color: #1f2430; }
    .wrap { max-width: 960px; margin: 40px auto; padding: 0 24px 40px; }
    .card { background: #fff; padding: 20px; border-radius: 12px; margin-bottom: 16px; }
    .card h2 { font-size: 18px; margin: 0 0 10px; }
    .meta { color: #5c667a; font-size: 13px; margin-bottom: 10px; }
    .tag { display: inline-block; padding: 3px 8px; margin-right: 6px; background: #eef1f7; border-radius: 999px; font-size: 12px; color: #4b5563; }
    a { color: #3366ff; text-decoration: none; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>新浪博客备份</h1>
    {{range .Posts}}<article class="card">
      <h2><a href="{{.File}}">{{if .Title}}{{.Title}}{{else}}无标题{{end}}</a></h2>
      <div class="meta">{{.PublishedAt}}{{if .Category}} · {{.Category}}{{end}}</div>
      <div class="tags">{{range .Tags}}<span class="tag">{{.}}</span>{{end}}</div>
    </article>
    {{end}}
  </div>
</body>
</html>
`))

var progressPageTemplate = template.Must(template.New("progress").Parse(`<!doctype html>
<html lang="zh-CN">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <meta http-equiv="refresh" content="2" />
  <title>备份进度</title>
  <style>
    body { font-family: "Segoe UI", "PingFang SC", sans-serif; margin: 0; background: #f4f6fb; color: #1f2430; }
    .wrap { max-width: 860px; margin: 40px auto; background: #fff; padding: 28px 32px; border-radius: 12px; }
    .bar { height: 12px; background: #e7eaf2; border-radius: 999px; overflow: hidden; margin: 12px 0 6px; }
    .bar > span { display: block; height: 100%; width: {{.Percent}}%; background: #4f7cff; }
    .meta { color: #5c667a; font-size: 14px; }
    .badge { display: inline-block; padding: 2px 8px; border-radius: 999px; background: #eef2ff; color: #2f4bdd; font-size: 12px; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>新浪博客备份进度</h1>
    <div class="badge">{{.Phase}}</div>
    <div class="bar"><span></span></div>
    <div class="meta">{{.Current}} / {{.Total}} ({{.Percent}}%)</div>
    <p>当前文章: {{.Title}}</p>
  </div>
</body>
</html>
`))

// postPageData 文章页模板数据
type postPageData struct {
	Title       string
	PublishedAt string
	Category    string
	Tags        []string
	Content     template.HTML
	URL         string
}

// RenderPostPage 将Post渲染为独立的归档页面
func RenderPostPage(post *Post) (string, error) {
	var b strings.Builder
	err := postPageTemplate.Execute(&b, postPageData{
		Title:       post.Title,
		PublishedAt: post.PublishedAt,
		Category:    post.Category,
		Tags:        post.Tags,
		Content:     template.HTML(post.ContentHTML),
		URL:         post.URL,
	})
	if err != nil {
		return "", fmt.Errorf("渲染文章页失败: %w", err)
	}
	return b.String(), nil
}

// IndexItem 索引页中的一行
type IndexItem struct {
	File        string
	Title       string
	PublishedAt string
	Category    string
	Tags        []string
}

// RenderIndexPage 渲染归档索引页
func RenderIndexPage(items []IndexItem) (string, error) {
	var b strings.Builder
	err := indexPageTemplate.Execute(&b, map[string]any{"Posts": items})
	if err != nil {
		return "", fmt.Errorf("渲染索引页失败: %w", err)
	}
	return b.String(), nil
}

// RenderProgressPage 渲染自动刷新的进度页
func RenderProgressPage(state ProgressState) (string, error) {
	var b strings.Builder
	if err := progressPageTemplate.Execute(&b, state); err != nil {
		return "", fmt.Errorf("渲染进度页失败: %w", err)
	}
	return b.String(), nil
}
