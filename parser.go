package sina2html

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// PostParser HTML解析和文章数据提取器。
// 一个实例对应一篇已抓取的文档，字段提取全部在同一文档上进行。
type PostParser struct {
	doc       *goquery.Document
	baseURL   string
	bodyText  string
	extractor *FieldExtractor
}

// NewPostParser 创建新的文章解析器
func NewPostParser(cfg *Config) *PostParser {
	return &PostParser{
		extractor: NewFieldExtractor(cfg),
	}
}

// LoadFromString 从字符串加载HTML
func (p *PostParser) LoadFromString(html string) error {
	return p.LoadFromReader(strings.NewReader(html))
}

// LoadFromFile 从文件加载HTML
func (p *PostParser) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return NewIOError(fmt.Sprintf("打开文件失败: %s", filename), err)
	}
	defer file.Close()

	return p.LoadFromReader(file)
}

// LoadFromReader 从读取器加载HTML
func (p *PostParser) LoadFromReader(reader io.Reader) error {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return NewParseError("解析HTML失败", err)
	}

	p.doc = doc
	p.bodyText = ""
	return nil
}

// SetBaseURL 设置基础URL，用于相对链接的补全
func (p *PostParser) SetBaseURL(baseURL string) {
	p.baseURL = baseURL
}

// BaseURL 获取基础URL，未显式设置时尝试文档中的base标签
func (p *PostParser) BaseURL() string {
	if p.baseURL != "" {
		return p.baseURL
	}

	if p.doc == nil {
		return ""
	}
	baseElement := p.doc.Find("base").First()
	if baseElement.Length() > 0 {
		if href, exists := baseElement.Attr("href"); exists {
			if strings.HasPrefix(href, "//") {
				return "https:" + href
			}
			return href
		}
	}
	return ""
}

// ResolveURL 将相对URL解析为绝对URL
func (p *PostParser) ResolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	base, err := url.Parse(p.BaseURL())
	if err != nil || base.Host == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// Document 返回底层goquery文档
func (p *PostParser) Document() *goquery.Document {
	return p.doc
}

// Root 返回文档根节点，供XPath规则使用
func (p *PostParser) Root() *html.Node {
	if p.doc == nil {
		return nil
	}
	return p.doc.Get(0)
}

// BodyText 返回文档的全部纯文本，启发式规则用它做正则兜底
func (p *PostParser) BodyText() string {
	if p.bodyText != "" {
		return p.bodyText
	}
	if p.doc == nil {
		return ""
	}

	body := p.doc.Find("body")
	if body.Length() > 0 {
		p.bodyText = NormalizeHTMLText(body.Text())
	} else {
		p.bodyText = NormalizeHTMLText(p.doc.Text())
	}
	return p.bodyText
}

// ParsePost 对已加载的文档运行全部字段提取器并聚合为Post。
// 正文缺失返回 no_content 错误；其余字段缺失降级为空值。
// 图片列表在正文片段改写之前收集，顺序与文档一致。
func (p *PostParser) ParsePost(pageURL string) (*Post, error) {
	if p.doc == nil {
		return nil, NewParseError("尚未加载任何HTML文档", nil)
	}
	if pageURL != "" {
		p.SetBaseURL(pageURL)
	}

	post := &Post{
		URL:      pageURL,
		StableID: StableIDFromURL(pageURL),
	}

	// 元数据字段先于正文提取，清理正文不影响启发式的全文正则
	post.Title = p.extractor.ExtractTitle(p)
	post.PublishedAt = p.extractor.ExtractTime(p)
	post.Category = p.extractor.ExtractCategory(p)
	post.Tags = p.extractor.ExtractTags(p)

	content, err := p.extractor.ExtractContent(p)
	if err != nil {
		return nil, err
	}

	cleanContent(content)
	post.Images = p.collectImages(content)

	contentHTML, err := goquery.OuterHtml(content)
	if err != nil {
		return nil, NewParseError("序列化正文片段失败", err)
	}
	post.ContentHTML = strings.TrimSpace(contentHTML)

	return post, nil
}

// cleanContent 从正文片段中去掉脚本和分享/评论/标签等附属区块
func cleanContent(sel *goquery.Selection) {
	sel.Find("script, style, noscript, iframe").Remove()
	sel.Find(".articalTag, .blog_tag, .blog_class, .share, .shareBtn, #share, .comment, #comment").Remove()
}

// collectImages 从正文片段中按文档顺序收集图片引用。
// 懒加载主题把真实地址放在 data-src / data-original 上。
// 重复引用只保留第一次出现。
func (p *PostParser) collectImages(sel *goquery.Selection) []Image {
	var images []Image
	seen := make(map[string]struct{})

	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := firstAttr(img, "src", "data-src", "data-original")
		if src == "" {
			return
		}

		full := p.ResolveURL(src)
		if full == "" {
			return
		}
		if _, ok := seen[full]; ok {
			return
		}
		seen[full] = struct{}{}

		alt, _ := img.Attr("alt")
		images = append(images, Image{URL: full, Alt: alt})
	})

	return images
}

// firstAttr 返回首个非空的属性值
func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if value, ok := sel.Attr(name); ok {
			if value = strings.TrimSpace(value); value != "" {
				return value
			}
		}
	}
	return ""
}
