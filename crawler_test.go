package sina2html

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func crawlerTestConfig(serverURL, outputDir string) *Config {
	cfg := NewDefaultConfig()
	cfg.UID = "42"
	cfg.ListURLTemplate = serverURL + "/articlelist_{uid}_0_{page}.html"
	cfg.ArticleURLRegex = `/s/blog_[0-9a-z]+\.html`
	cfg.OutputDir = outputDir
	cfg.DownloadImages = false
	cfg.MaxRetries = 0
	cfg.RetryDelaySec = 0
	cfg.RequestDelaySec = 0
	cfg.MaxConcurrent = 2
	return cfg
}

func listPageHTML(ids ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"articleList\">")
	for _, id := range ids {
		fmt.Fprintf(&b, `<span class="atc_title"><a href="/s/%s.html">文章 %s</a></span>`, id, id)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func postPageHTML(id string) string {
	return fmt.Sprintf(`<html><body>
		<h2 class="titName">文章 %s</h2>
		<span class="time">(2013-05-20 18:30:00)</span>
		<div id="sina_keyword_ad_area2">这是文章 %s 的正文，内容足够长可以通过最小长度阈值检查。</div>
	</body></html>`, id, id)
}

func newCrawlerTestServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func runCrawler(t *testing.T, cfg *Config) (*RunSummary, *Archive) {
	t.Helper()
	archive, err := OpenArchive(cfg.OutputDir)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	fetcher, err := NewHTTPFetcher(cfg)
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	summary, err := NewCrawler(cfg, fetcher, archive).Run(context.Background())
	if err != nil {
		t.Fatalf("crawler run: %v", err)
	}
	return summary, archive
}

func TestCrawlerStopsWhenPageYieldsNoNewLinks(t *testing.T) {
	pages := map[string]string{
		"/articlelist_42_0_1.html": listPageHTML("blog_p1a", "blog_p1b"),
		"/articlelist_42_0_2.html": listPageHTML("blog_p2a", "blog_p1b"),
		// 最后一页之后，主题重复返回同样的内容
		"/articlelist_42_0_3.html": listPageHTML("blog_p2a", "blog_p1a"),
		"/s/blog_p1a.html":         postPageHTML("blog_p1a"),
		"/s/blog_p1b.html":         postPageHTML("blog_p1b"),
		"/s/blog_p2a.html":         postPageHTML("blog_p2a"),
	}
	server := newCrawlerTestServer(t, pages)

	cfg := crawlerTestConfig(server.URL, t.TempDir())
	summary, archive := runCrawler(t, cfg)

	if summary.State != StateExhausted {
		t.Fatalf("unexpected state: %s", summary.State)
	}
	if summary.PagesWalked != 3 {
		t.Fatalf("unexpected pages walked: %d", summary.PagesWalked)
	}
	if summary.PostsDiscovered != 3 || summary.PostsArchived != 3 {
		t.Fatalf("unexpected post counts: %+v", summary)
	}
	for _, id := range []string{"blog_p1a", "blog_p1b", "blog_p2a"} {
		if !archive.Exists(id) {
			t.Errorf("post %s missing from archive", id)
		}
	}
}

func TestCrawlerStopsAtPageCeiling(t *testing.T) {
	pages := map[string]string{
		"/articlelist_42_0_1.html": listPageHTML("blog_c1"),
		"/articlelist_42_0_2.html": listPageHTML("blog_c2"),
		"/s/blog_c1.html":          postPageHTML("blog_c1"),
		"/s/blog_c2.html":          postPageHTML("blog_c2"),
	}
	server := newCrawlerTestServer(t, pages)

	cfg := crawlerTestConfig(server.URL, t.TempDir())
	cfg.MaxPages = 1
	summary, archive := runCrawler(t, cfg)

	if summary.State != StateCeilingReached {
		t.Fatalf("unexpected state: %s", summary.State)
	}
	if summary.PostsArchived != 1 {
		t.Fatalf("unexpected archived count: %d", summary.PostsArchived)
	}
	if archive.Exists("blog_c2") {
		t.Fatal("post beyond ceiling must not be fetched")
	}
}

func TestCrawlerSecondRunSkipsArchivedPosts(t *testing.T) {
	pages := map[string]string{
		"/articlelist_42_0_1.html": listPageHTML("blog_r1", "blog_r2"),
		"/articlelist_42_0_2.html": listPageHTML("blog_r1"),
		"/s/blog_r1.html":          postPageHTML("blog_r1"),
		"/s/blog_r2.html":          postPageHTML("blog_r2"),
	}
	server := newCrawlerTestServer(t, pages)

	outputDir := t.TempDir()
	first, _ := runCrawler(t, crawlerTestConfig(server.URL, outputDir))
	if first.PostsArchived != 2 {
		t.Fatalf("first run archived %d posts", first.PostsArchived)
	}

	second, archive := runCrawler(t, crawlerTestConfig(server.URL, outputDir))
	if second.PostsArchived != 0 {
		t.Fatalf("second run must archive nothing, got %d", second.PostsArchived)
	}
	if second.PostsSkipped != 2 {
		t.Fatalf("second run must skip archived posts, got %d", second.PostsSkipped)
	}
	if archive.Len() != 2 {
		t.Fatalf("archive must still hold 2 posts, got %d", archive.Len())
	}
}

func TestCrawlerSkipsFailingListingPage(t *testing.T) {
	pages := map[string]string{
		"/articlelist_42_0_1.html": listPageHTML("blog_f1"),
		// 第2页缺失(返回404)，第3页没有新链接
		"/articlelist_42_0_3.html": listPageHTML("blog_f1"),
		"/s/blog_f1.html":          postPageHTML("blog_f1"),
	}
	server := newCrawlerTestServer(t, pages)

	cfg := crawlerTestConfig(server.URL, t.TempDir())
	summary, _ := runCrawler(t, cfg)

	if summary.State != StateExhausted {
		t.Fatalf("unexpected state: %s", summary.State)
	}
	if summary.PostsArchived != 1 {
		t.Fatalf("unexpected archived count: %d", summary.PostsArchived)
	}
	// 404的那一页不计入已走页数
	if summary.PagesWalked != 2 {
		t.Fatalf("unexpected pages walked: %d", summary.PagesWalked)
	}
}

func TestCrawlerCountsUnparsablePostAsFailed(t *testing.T) {
	pages := map[string]string{
		"/articlelist_42_0_1.html": listPageHTML("blog_ok1", "blog_bad"),
		"/articlelist_42_0_2.html": listPageHTML("blog_ok1"),
		"/s/blog_ok1.html":         postPageHTML("blog_ok1"),
		"/s/blog_bad.html":         "<html><body><div>短</div></body></html>",
	}
	server := newCrawlerTestServer(t, pages)

	cfg := crawlerTestConfig(server.URL, t.TempDir())
	summary, archive := runCrawler(t, cfg)

	if summary.PostsArchived != 1 {
		t.Fatalf("unexpected archived count: %d", summary.PostsArchived)
	}
	if summary.PostsFailed != 1 {
		t.Fatalf("unexpected failed count: %d", summary.PostsFailed)
	}
	if archive.Exists("blog_bad") {
		t.Fatal("post without content must not be archived")
	}
}

func TestCrawlerUsesConfiguredListLinkSelector(t *testing.T) {
	listPage := `<html><body>
		<span class="atc_title"><a href="/s/blog_sel1.html">正文链接</a></span>
		<div class="recommend"><a href="/s/blog_noise.html">推荐位链接</a></div>
	</body></html>`
	pages := map[string]string{
		"/articlelist_42_0_1.html": listPage,
		"/articlelist_42_0_2.html": listPage,
		"/s/blog_sel1.html":        postPageHTML("blog_sel1"),
		"/s/blog_noise.html":       postPageHTML("blog_noise"),
	}
	server := newCrawlerTestServer(t, pages)

	cfg := crawlerTestConfig(server.URL, t.TempDir())
	cfg.Selectors.ListLink = "span.atc_title a"
	summary, archive := runCrawler(t, cfg)

	if summary.PostsArchived != 1 {
		t.Fatalf("unexpected archived count: %d", summary.PostsArchived)
	}
	if archive.Exists("blog_noise") {
		t.Fatal("link outside the configured selector must be ignored")
	}
}

func TestCrawlerUsesXPathListLinkSelector(t *testing.T) {
	listPage := `<html><body>
		<span class="atc_title"><a href="/s/blog_xp1.html">正文链接</a></span>
		<div class="recommend"><a href="/s/blog_xpnoise.html">推荐位链接</a></div>
	</body></html>`
	pages := map[string]string{
		"/articlelist_42_0_1.html": listPage,
		"/articlelist_42_0_2.html": listPage,
		"/s/blog_xp1.html":         postPageHTML("blog_xp1"),
		"/s/blog_xpnoise.html":     postPageHTML("blog_xpnoise"),
	}
	server := newCrawlerTestServer(t, pages)

	cfg := crawlerTestConfig(server.URL, t.TempDir())
	cfg.Selectors.ListLink = `xpath://span[@class='atc_title']/a`
	summary, archive := runCrawler(t, cfg)

	if summary.PostsArchived != 1 {
		t.Fatalf("unexpected archived count: %d", summary.PostsArchived)
	}
	if !archive.Exists("blog_xp1") {
		t.Fatal("post matched by the xpath selector must be archived")
	}
	if archive.Exists("blog_xpnoise") {
		t.Fatal("link outside the xpath selector must be ignored")
	}
}
