package sina2html

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// defaultArticleURLPattern 新浪博客文章页URL的默认识别正则
var defaultArticleURLPattern = regexp.MustCompile(`blog\.sina\.com\.cn/s/blog_[0-9a-z]+\.html`)

// progressTitleWidth 进度快照中标题的最大字符数
const progressTitleWidth = 48

// Crawler walks the paginated listing from page 1, discovers post URLs,
// and drives the per-post pipeline (fetch, parse, images, archive).
//
// Listing pages are fetched strictly in page order because termination
// depends on per-page new-URL accounting: a page that yields zero new
// URLs after global dedup ends the walk. Individual posts are order
// independent and run on a bounded worker pool.
type Crawler struct {
	cfg        *Config
	fetcher    *HTTPFetcher
	archive    *Archive
	images     *ImageHandler
	markdown   *MarkdownExporter
	resolver   *Resolver
	articleURL *regexp.Regexp

	mu      sync.Mutex
	seen    map[string]struct{}
	summary RunSummary
}

// NewCrawler 创建抓取控制器。配置必须已通过 Validate。
func NewCrawler(cfg *Config, fetcher *HTTPFetcher, archive *Archive) *Crawler {
	articleURL := defaultArticleURLPattern
	if cfg.ArticleURLRegex != "" {
		articleURL = regexp.MustCompile(cfg.ArticleURLRegex)
	}

	c := &Crawler{
		cfg:        cfg,
		fetcher:    fetcher,
		archive:    archive,
		images:     NewImageHandler(fetcher, cfg),
		resolver:   NewResolver(&cfg.Selectors),
		articleURL: articleURL,
		seen:       make(map[string]struct{}),
	}
	if cfg.ExportMarkdown {
		c.markdown = NewMarkdownExporter()
	}
	return c
}

// Run 执行完整的备份流程并返回统计结果。
// 单篇文章或单个列表页的失败只会被记录，不会中断整体运行。
func (c *Crawler) Run(ctx context.Context) (*RunSummary, error) {
	c.archive.WriteProgress(ProgressState{Phase: "collecting", Title: "列表抓取中"})

	jobs := make(chan PostRef)
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.MaxConcurrent; i++ {
		wg.Add(1)
		go c.postWorker(ctx, jobs, &wg)
	}

	state := c.walkListing(ctx, jobs)
	close(jobs)
	wg.Wait()

	if err := c.archive.WriteIndex(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.summary.State = state
	summary := c.summary
	c.mu.Unlock()

	c.archive.WriteProgress(ProgressState{
		Phase:   "done",
		Current: summary.PostsArchived + summary.PostsSkipped + summary.PostsFailed,
		Total:   summary.PostsDiscovered,
		Title:   "备份完成",
	})

	return &summary, nil
}

// walkListing 顺序遍历列表页并投递新发现的文章。
// 返回结束状态: 某页无新链接(exhausted)、达到页数上限(ceiling_reached)
// 或被取消(canceled)。
func (c *Crawler) walkListing(ctx context.Context, jobs chan<- PostRef) TerminalState {
	for page := 1; page <= c.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			return StateCanceled
		}

		listURL := c.cfg.ListPageURL(page)
		slog.Info("抓取列表页", "page", page, "url", listURL)

		html, err := c.fetcher.FetchPage(ctx, listURL)
		if err != nil {
			if ctx.Err() != nil {
				return StateCanceled
			}
			// 部分主题在超出实际页数后返回错误而不是重复内容，
			// 跳过该页继续，由零新链接或页数上限负责终止
			slog.Warn("抓取列表页失败，跳过", "page", page, "error", err)
			continue
		}

		c.mu.Lock()
		c.summary.PagesWalked++
		c.mu.Unlock()

		refs := c.extractPostRefs(html, listURL)
		newRefs := c.filterSeen(refs)
		slog.Debug("列表页解析完成", "page", page, "links", len(refs), "new", len(newRefs))

		if len(newRefs) == 0 {
			return StateExhausted
		}

		c.mu.Lock()
		c.summary.PostsDiscovered += len(newRefs)
		c.mu.Unlock()

		for _, ref := range newRefs {
			select {
			case jobs <- ref:
			case <-ctx.Done():
				return StateCanceled
			}
		}

		if delay := c.cfg.RequestDelay(); delay > 0 && page < c.cfg.MaxPages {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return StateCanceled
			}
		}
	}
	return StateCeilingReached
}

// extractPostRefs 从列表页HTML中提取文章链接，页内去重并补全为绝对URL
func (c *Crawler) extractPostRefs(listHTML, listURL string) []PostRef {
	parser := NewPostParser(c.cfg)
	if err := parser.LoadFromString(listHTML); err != nil {
		slog.Warn("解析列表页失败", "url", listURL, "error", err)
		return nil
	}
	parser.SetBaseURL(listURL)
	doc := parser.Document()

	var hrefs []string
	collect := func(href string, ok bool) {
		if ok && strings.TrimSpace(href) != "" {
			hrefs = append(hrefs, href)
		}
	}

	if rule, ok := c.resolver.ListLinkRule(); ok {
		switch rule.Kind {
		case RuleCSS:
			doc.FindMatcher(rule.css).Each(func(_ int, s *goquery.Selection) {
				collect(s.Attr("href"))
			})
		case RuleXPath:
			for _, node := range htmlquery.QuerySelectorAll(parser.Root(), rule.expr) {
				collect(htmlquery.SelectAttr(node, "href"), true)
			}
		}
	} else {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			collect(s.Attr("href"))
		})
	}

	var refs []PostRef
	pageSeen := make(map[string]struct{})
	for _, href := range hrefs {
		full := parser.ResolveURL(href)
		if full == "" || !c.articleURL.MatchString(full) {
			continue
		}
		if _, ok := pageSeen[full]; ok {
			continue
		}
		pageSeen[full] = struct{}{}
		refs = append(refs, NewPostRef(full))
	}
	return refs
}

// filterSeen 全局去重：过滤掉之前任何页面已经出现过的URL
func (c *Crawler) filterSeen(refs []PostRef) []PostRef {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fresh []PostRef
	for _, ref := range refs {
		if _, ok := c.seen[ref.URL]; ok {
			continue
		}
		c.seen[ref.URL] = struct{}{}
		fresh = append(fresh, ref)
	}
	return fresh
}

// postWorker 消费文章任务直到通道关闭
func (c *Crawler) postWorker(ctx context.Context, jobs <-chan PostRef, wg *sync.WaitGroup) {
	defer wg.Done()
	for ref := range jobs {
		if ctx.Err() != nil {
			continue
		}
		c.processPost(ctx, ref)
	}
}

// processPost 处理单篇文章：抓取、解析、下载图片、归档。
// 任何阶段失败都只记录并跳过该文章。
func (c *Crawler) processPost(ctx context.Context, ref PostRef) {
	if c.archive.Exists(ref.StableID) {
		slog.Debug("文章已归档，跳过", "id", ref.StableID)
		c.mu.Lock()
		c.summary.PostsSkipped++
		c.mu.Unlock()
		return
	}

	rawHTML, err := c.fetcher.FetchPage(ctx, ref.URL)
	if err != nil {
		slog.Warn("抓取文章失败", "url", ref.URL, "error", err)
		c.recordFailure()
		return
	}

	if c.cfg.SaveRawHTML {
		if err := c.archive.SaveRawHTML(ref.StableID, rawHTML); err != nil {
			slog.Warn("保存原始HTML失败", "id", ref.StableID, "error", err)
		}
	}

	parser := NewPostParser(c.cfg)
	if err := parser.LoadFromString(rawHTML); err != nil {
		slog.Warn("解析文章失败", "url", ref.URL, "error", err)
		c.recordFailure()
		return
	}

	post, err := parser.ParsePost(ref.URL)
	if err != nil {
		if IsNoContent(err) {
			slog.Warn("文章无正文，跳过", "url", ref.URL)
		} else {
			slog.Warn("提取文章失败", "url", ref.URL, "error", err)
		}
		c.recordFailure()
		return
	}

	if err := c.images.DownloadAll(ctx, post); err != nil {
		slog.Warn("下载图片失败", "url", ref.URL, "error", err)
	}

	if c.markdown != nil {
		if md, err := c.markdown.Render(post); err != nil {
			slog.Warn("导出Markdown失败", "url", ref.URL, "error", err)
		} else if err := c.archive.SaveMarkdown(post.StableID, md); err != nil {
			slog.Warn("写入Markdown失败", "id", post.StableID, "error", err)
		}
	}

	c.images.RewriteContent(post)

	if err := c.archive.SavePost(post); err != nil {
		slog.Error("归档文章失败", "url", ref.URL, "error", err)
		c.recordFailure()
		return
	}

	downloaded := 0
	for _, img := range post.Images {
		if img.Downloaded {
			downloaded++
		}
	}

	c.mu.Lock()
	c.summary.PostsArchived++
	c.summary.ImagesDownloaded += downloaded
	state := ProgressState{
		Phase:   "downloading",
		Current: c.summary.PostsArchived + c.summary.PostsSkipped + c.summary.PostsFailed,
		Total:   c.summary.PostsDiscovered,
		Title:   TruncateText(post.Title, progressTitleWidth),
		URL:     post.URL,
	}
	c.mu.Unlock()

	slog.Info("文章已归档", "id", post.StableID, "title", post.Title)
	c.archive.WriteProgress(state)
}

func (c *Crawler) recordFailure() {
	c.mu.Lock()
	c.summary.PostsFailed++
	c.mu.Unlock()
}
