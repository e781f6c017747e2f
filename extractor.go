package sina2html

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/samber/lo"
)

// Pre-compiled patterns shared by the built-in heuristics.
var (
	dateTimePattern     = regexp.MustCompile(`(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?)?`)
	categoryTextPattern = regexp.MustCompile(`分类[:：]\s*(\S+)`)
	tagsTextPattern     = regexp.MustCompile(`标签[:：]\s*([^\n]+)`)
	tagSplitPattern     = regexp.MustCompile(`[,\s]+`)
	contentIDPattern    = regexp.MustCompile(`(?i)sina_keyword_ad_area`)
	contentClassPattern = regexp.MustCompile(`(?i)(articalContent|article|post|content)`)
	noisePattern        = regexp.MustCompile(`(?i)(nav|menu|footer|foot|side|comment|share|recommend|articaltag)`)
	titleSuffixPattern  = regexp.MustCompile(`[-_—|]?\s*新浪博客\s*$`)
)

// FieldExtractor runs the candidate rules of one logical field against a
// document. Candidates are tried in resolver order and the first non-empty
// result wins; a field with no winning candidate is absent, which is a
// normal outcome, not an error. Only content absence is a hard failure.
type FieldExtractor struct {
	resolver        *Resolver
	minContentChars int
}

// NewFieldExtractor 创建字段提取器
func NewFieldExtractor(cfg *Config) *FieldExtractor {
	minChars := cfg.MinContentChars
	if minChars <= 0 {
		minChars = 20
	}
	return &FieldExtractor{
		resolver:        NewResolver(&cfg.Selectors),
		minContentChars: minChars,
	}
}

// ExtractTitle 提取标题，缺失时返回空串
func (e *FieldExtractor) ExtractTitle(p *PostParser) string {
	for _, rule := range e.resolver.FieldRules(FieldTitle) {
		if rule.Kind == RuleHeuristic {
			return e.guessTitle(p)
		}
		if text := applyTextRule(p, rule); text != "" {
			return text
		}
	}
	return ""
}

// ExtractTime 提取发布时间。能识别的时间文本会被规范化，
// 规范化失败时保留原文，规范化失败不算字段缺失。
func (e *FieldExtractor) ExtractTime(p *PostParser) string {
	for _, rule := range e.resolver.FieldRules(FieldTime) {
		if rule.Kind == RuleHeuristic {
			return NormalizeTimeText(e.guessTime(p))
		}
		if text := applyTextRule(p, rule); text != "" {
			return NormalizeTimeText(text)
		}
	}
	return ""
}

// ExtractCategory 提取分类，缺失时返回空串
func (e *FieldExtractor) ExtractCategory(p *PostParser) string {
	for _, rule := range e.resolver.FieldRules(FieldCategory) {
		if rule.Kind == RuleHeuristic {
			return e.guessCategory(p)
		}
		if text := applyTextRule(p, rule); text != "" {
			return text
		}
	}
	return ""
}

// ExtractTags 提取标签集合。重复标签折叠为一个，保持文档顺序以便输出稳定。
func (e *FieldExtractor) ExtractTags(p *PostParser) []string {
	for _, rule := range e.resolver.FieldRules(FieldTags) {
		var tags []string
		if rule.Kind == RuleHeuristic {
			tags = e.guessTags(p)
		} else {
			tags = applyMultiTextRule(p, rule)
		}
		if len(tags) > 0 {
			return lo.Uniq(tags)
		}
	}
	return nil
}

// ExtractContent 提取正文容器。候选按顺序尝试，首个文本长度达到
// 阈值的容器胜出；全部失败返回 no_content 错误，该文章不会被归档。
func (e *FieldExtractor) ExtractContent(p *PostParser) (*goquery.Selection, error) {
	for _, rule := range e.resolver.FieldRules(FieldContent) {
		if rule.Kind == RuleHeuristic {
			if node := e.guessContentNode(p); node != nil {
				return node, nil
			}
			continue
		}
		if node := applyNodeRule(p, rule); node != nil && e.contentLongEnough(node) {
			return node, nil
		}
	}
	return nil, NewNoContentError(p.BaseURL())
}

// contentLongEnough 检查容器文本长度是否达到阈值
func (e *FieldExtractor) contentLongEnough(sel *goquery.Selection) bool {
	text := NormalizeHTMLText(sel.Text())
	return utf8.RuneCountInString(text) >= e.minContentChars
}

// ---- 内置启发式规则，针对新浪博客常见主题的约定结构 ----

func (e *FieldExtractor) guessTitle(p *PostParser) string {
	title := pickFirstText(p,
		"h2.titName",
		"h1",
		"meta:og:title",
		"meta:title",
		"title",
	)
	if title == "" {
		return ""
	}
	return strings.TrimSpace(titleSuffixPattern.ReplaceAllString(title, ""))
}

func (e *FieldExtractor) guessTime(p *PostParser) string {
	text := pickFirstText(p,
		"span.time",
		"meta:article:published_time",
		"meta:og:pubdate",
	)
	if text != "" {
		return text
	}
	// 主题没有独立的时间元素时，从全文中找第一个日期样式的片段
	if m := dateTimePattern.FindString(p.BodyText()); m != "" {
		return m
	}
	return ""
}

func (e *FieldExtractor) guessCategory(p *PostParser) string {
	category := pickFirstText(p,
		`a[rel="category tag"]`,
		"a.blogCategory",
		"span.category",
	)
	if category != "" {
		return category
	}
	if m := categoryTextPattern.FindStringSubmatch(p.BodyText()); m != nil {
		return m[1]
	}
	return ""
}

func (e *FieldExtractor) guessTags(p *PostParser) []string {
	var tags []string
	p.Document().Find(`a[rel="tag"], .blog_tag a, .tag a`).Each(func(_ int, s *goquery.Selection) {
		if text := NormalizeHTMLText(s.Text()); text != "" {
			tags = append(tags, text)
		}
	})
	if len(tags) > 0 {
		return tags
	}

	m := tagsTextPattern.FindStringSubmatch(p.BodyText())
	if m == nil {
		return nil
	}
	segment := strings.TrimSpace(m[1])
	// 过长的匹配说明命中了正文而不是标签栏
	if utf8.RuneCountInString(segment) > 120 {
		return nil
	}
	for _, part := range tagSplitPattern.Split(segment, -1) {
		if part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

// guessContentNode 按新浪主题的约定容器逐个尝试，全部失败时
// 退回到文本量最大的非噪声div。
func (e *FieldExtractor) guessContentNode(p *PostParser) *goquery.Selection {
	doc := p.Document()

	for _, sel := range []string{
		"div#sina_keyword_ad_area2",
		"div.articalContent",
		"div#articlebody",
		"div#artibody",
	} {
		node := doc.Find(sel).First()
		if node.Length() > 0 && !isTagBlock(node) && e.contentLongEnough(node) {
			return node
		}
	}

	if node := findDivByAttr(doc, "id", contentIDPattern); node != nil &&
		!isTagBlock(node) && e.contentLongEnough(node) {
		return node
	}

	if node := findDivByAttr(doc, "class", contentClassPattern); node != nil &&
		!isTagBlock(node) && e.contentLongEnough(node) {
		return node
	}

	var best *goquery.Selection
	bestLen := 0
	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		if isNoiseNode(s) || isTagBlock(s) {
			return
		}
		length := utf8.RuneCountInString(NormalizeHTMLText(s.Text()))
		if length > bestLen {
			best = s
			bestLen = length
		}
	})
	if best != nil && bestLen >= e.minContentChars {
		return best
	}
	return nil
}

// ---- 规则应用原语 ----

// pickFirstText 依次尝试内置候选(语法同配置规则)，返回首个非空文本
func pickFirstText(p *PostParser, raws ...string) string {
	for _, raw := range raws {
		rule, err := ParseRule(raw)
		if err != nil {
			continue
		}
		if text := applyTextRule(p, rule); text != "" {
			return text
		}
	}
	return ""
}

// applyTextRule 应用规则并返回首个匹配元素的文本
func applyTextRule(p *PostParser, rule Rule) string {
	switch rule.Kind {
	case RuleCSS:
		sel := p.Document().FindMatcher(rule.css).First()
		if sel.Length() == 0 {
			return ""
		}
		if goquery.NodeName(sel) == "meta" {
			content, _ := sel.Attr("content")
			return strings.TrimSpace(content)
		}
		return NormalizeHTMLText(sel.Text())

	case RuleMeta:
		return findMetaContent(p.Document(), rule.Raw)

	case RuleXPath:
		nodes := htmlquery.QuerySelectorAll(p.Root(), rule.expr)
		if len(nodes) == 0 {
			return ""
		}
		return NormalizeHTMLText(htmlquery.InnerText(nodes[0]))
	}
	return ""
}

// applyMultiTextRule 应用规则并收集所有匹配元素的文本
func applyMultiTextRule(p *PostParser, rule Rule) []string {
	var texts []string
	switch rule.Kind {
	case RuleCSS:
		p.Document().FindMatcher(rule.css).Each(func(_ int, s *goquery.Selection) {
			if text := NormalizeHTMLText(s.Text()); text != "" {
				texts = append(texts, text)
			}
		})

	case RuleMeta:
		if content := findMetaContent(p.Document(), rule.Raw); content != "" {
			texts = append(texts, content)
		}

	case RuleXPath:
		for _, node := range htmlquery.QuerySelectorAll(p.Root(), rule.expr) {
			if text := NormalizeHTMLText(htmlquery.InnerText(node)); text != "" {
				texts = append(texts, text)
			}
		}
	}
	return texts
}

// applyNodeRule 应用规则并返回首个匹配的元素节点
func applyNodeRule(p *PostParser, rule Rule) *goquery.Selection {
	switch rule.Kind {
	case RuleCSS:
		sel := p.Document().FindMatcher(rule.css).First()
		if sel.Length() > 0 {
			return sel
		}

	case RuleXPath:
		nodes := htmlquery.QuerySelectorAll(p.Root(), rule.expr)
		if len(nodes) > 0 {
			return goquery.NewDocumentFromNode(nodes[0]).Selection
		}
	}
	// meta 规则不产生容器节点
	return nil
}

// findMetaContent 按 property 或 name 查找 meta 标签的 content
func findMetaContent(doc *goquery.Document, name string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		prop, _ := s.Attr("property")
		metaName, _ := s.Attr("name")
		if prop != name && metaName != name {
			return true
		}
		if c, ok := s.Attr("content"); ok && strings.TrimSpace(c) != "" {
			content = strings.TrimSpace(c)
			return false
		}
		return true
	})
	return content
}

// findDivByAttr 查找首个属性值匹配正则的div
func findDivByAttr(doc *goquery.Document, attr string, pattern *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if value, ok := s.Attr(attr); ok && pattern.MatchString(value) {
			found = s
			return false
		}
		return true
	})
	return found
}

// isTagBlock 判断节点是否为标签/分类元数据区块而非正文
func isTagBlock(sel *goquery.Selection) bool {
	if class, ok := sel.Attr("class"); ok && strings.Contains(class, "articalTag") {
		return true
	}
	if sel.Find(".blog_tag, .blog_class").Length() > 0 {
		return true
	}
	text := NormalizeHTMLText(sel.Text())
	return strings.Contains(text, "标签") && strings.Contains(text, "分类") &&
		utf8.RuneCountInString(text) < 300
}

// isNoiseNode 判断节点是否为导航/侧栏/评论等与正文无关的区块
func isNoiseNode(sel *goquery.Selection) bool {
	if id, ok := sel.Attr("id"); ok && noisePattern.MatchString(id) {
		return true
	}
	if class, ok := sel.Attr("class"); ok && noisePattern.MatchString(class) {
		return true
	}
	return false
}

// NormalizeTimeText 将常见的日期时间文本规范化为
// "2006-01-02 15:04[:05]" 形式，无法识别时原样返回。
func NormalizeTimeText(raw string) string {
	raw = NormalizeHTMLText(raw)
	if raw == "" {
		return ""
	}

	m := dateTimePattern.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return raw
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(year))
	b.WriteByte('-')
	writePadded(&b, month)
	b.WriteByte('-')
	writePadded(&b, day)

	if m[4] != "" {
		hour, _ := strconv.Atoi(m[4])
		if hour > 23 {
			return raw
		}
		b.WriteByte(' ')
		writePadded(&b, hour)
		b.WriteByte(':')
		b.WriteString(m[5])
		if m[6] != "" {
			b.WriteByte(':')
			b.WriteString(m[6])
		}
	}
	return b.String()
}

func writePadded(b *strings.Builder, n int) {
	if n < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.Itoa(n))
}
