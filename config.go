package sina2html

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Selectors 按字段配置的CSS选择器，留空时使用内置的主题启发式规则。
// list_link 是单个选择器；五个正文字段均为按顺序尝试的候选列表。
type Selectors struct {
	ListLink string   `json:"list_link,omitempty" mapstructure:"list_link" toml:"list_link"`
	Title    []string `json:"title,omitempty" mapstructure:"title" toml:"title"`
	Time     []string `json:"time,omitempty" mapstructure:"time" toml:"time"`
	Category []string `json:"category,omitempty" mapstructure:"category" toml:"category"`
	Tags     []string `json:"tags,omitempty" mapstructure:"tags" toml:"tags"`
	Content  []string `json:"content,omitempty" mapstructure:"content" toml:"content"`
}

// Config 应用配置，在一次备份运行期间不可变
type Config struct {
	// 输入配置
	UID             string `json:"uid" mapstructure:"uid"`                             // 博客数字ID
	Cookie          string `json:"cookie,omitempty" mapstructure:"cookie"`             // 登录Cookie(原始请求头格式)
	CookieFile      string `json:"cookie_file,omitempty" mapstructure:"cookie_file"`   // Cookie文件路径
	ListURLTemplate string `json:"list_url_template" mapstructure:"list_url_template"` // 列表页URL模板，含{uid}和{page}占位符
	ArticleURLRegex string `json:"article_url_regex,omitempty" mapstructure:"article_url_regex"` // 文章URL过滤正则(可选)

	// 提取配置
	Selectors       Selectors `json:"selectors,omitempty" mapstructure:"selectors"`           // 按字段的CSS选择器覆盖
	MinContentChars int       `json:"min_content_chars" mapstructure:"min_content_chars"` // 正文最小字符数阈值

	// 输出配置
	OutputDir      string `json:"output_dir" mapstructure:"output_dir"`           // 归档输出目录
	DownloadImages bool   `json:"download_images" mapstructure:"download_images"` // 是否下载并本地化图片
	SaveRawHTML    bool   `json:"save_raw_html" mapstructure:"save_raw_html"`     // 是否保存原始HTML
	ExportMarkdown bool   `json:"export_markdown" mapstructure:"export_markdown"` // 是否额外导出Markdown

	// HTTP配置
	UserAgent       string            `json:"user_agent,omitempty" mapstructure:"user_agent"`       // User-Agent
	Headers         map[string]string `json:"headers,omitempty" mapstructure:"headers"`             // 自定义请求头
	TimeoutSec      int               `json:"timeout_sec" mapstructure:"timeout_sec"`               // 单次请求超时(秒)
	MaxRetries      int               `json:"max_retries" mapstructure:"max_retries"`               // 瞬时错误最大重试次数
	RetryDelaySec   int               `json:"retry_delay_sec" mapstructure:"retry_delay_sec"`       // 重试间隔(秒)
	RequestDelaySec float64           `json:"request_delay_sec" mapstructure:"request_delay_sec"`   // 列表页抓取间隔(秒)

	// 抓取配置
	MaxPages      int `json:"max_pages" mapstructure:"max_pages"`           // 列表页数硬上限
	MaxConcurrent int `json:"max_concurrent" mapstructure:"max_concurrent"` // 文章抓取最大并发数
}

// DefaultUserAgent 默认浏览器标识
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// DefaultListURLTemplate 新浪博客文章列表页的URL模板
const DefaultListURLTemplate = "https://blog.sina.com.cn/s/articlelist_{uid}_0_{page}.html"

// NewDefaultConfig 创建默认配置
func NewDefaultConfig() *Config {
	return &Config{
		ListURLTemplate: DefaultListURLTemplate,
		MinContentChars: 20,
		OutputDir:       "output",
		DownloadImages:  true,
		UserAgent:       DefaultUserAgent,
		TimeoutSec:      15,
		MaxRetries:      3,
		RetryDelaySec:   2,
		RequestDelaySec: 1,
		MaxPages:        50,
		MaxConcurrent:   5,
	}
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// RetryDelay returns the delay between retry attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySec) * time.Second
}

// RequestDelay returns the polite delay between listing page fetches.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelaySec * float64(time.Second))
}

// Validate 在任何网络请求发生之前校验配置，失败返回 ConfigError。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UID) == "" {
		return NewConfigError("配置缺少 uid")
	}

	tmpl := strings.TrimSpace(c.ListURLTemplate)
	if tmpl == "" {
		return NewConfigError("配置缺少 list_url_template")
	}
	if !strings.Contains(tmpl, "{uid}") {
		return NewConfigError("list_url_template 缺少 {uid} 占位符")
	}
	if !strings.Contains(tmpl, "{page}") {
		return NewConfigError("list_url_template 缺少 {page} 占位符")
	}

	if c.ArticleURLRegex != "" {
		if _, err := regexp.Compile(c.ArticleURLRegex); err != nil {
			return NewConfigError(fmt.Sprintf("article_url_regex 无效: %v", err))
		}
	}

	// 用户提供的选择器在这里统一编译，避免运行期才发现语法错误
	if c.Selectors.ListLink != "" {
		rule, err := ParseRule(c.Selectors.ListLink)
		if err != nil {
			return NewConfigError(fmt.Sprintf("selectors.list_link 无效: %v", err))
		}
		// 列表页提取的是链接节点，meta 标签里没有 href 可取
		if rule.Kind == RuleMeta {
			return NewConfigError("selectors.list_link 不支持 meta: 规则")
		}
	}
	fields := map[string][]string{
		"title":    c.Selectors.Title,
		"time":     c.Selectors.Time,
		"category": c.Selectors.Category,
		"tags":     c.Selectors.Tags,
		"content":  c.Selectors.Content,
	}
	for field, rules := range fields {
		for _, raw := range rules {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			if _, err := ParseRule(raw); err != nil {
				return NewConfigError(fmt.Sprintf("selectors.%s 包含无效规则 %q: %v", field, raw, err))
			}
		}
	}

	if c.MaxPages <= 0 {
		return NewConfigError("max_pages 必须大于 0")
	}
	if c.MaxConcurrent <= 0 {
		return NewConfigError("max_concurrent 必须大于 0")
	}
	if c.MinContentChars < 0 {
		return NewConfigError("min_content_chars 不能为负数")
	}

	return nil
}

// ListPageURL 根据页码构建列表页URL
func (c *Config) ListPageURL(page int) string {
	r := strings.NewReplacer("{uid}", c.UID, "{page}", fmt.Sprintf("%d", page))
	return r.Replace(c.ListURLTemplate)
}
