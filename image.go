package sina2html

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// imageRelPrefix 文章页和Markdown都位于 posts/ 下，图片目录与其平级
const imageRelPrefix = "../images/"

// ImageHandler downloads the images referenced by a post into the shared
// images directory and rewrites the content fragment to point at the
// local copies. Failed downloads leave the remote URL in place; they are
// logged but never fail the post.
type ImageHandler struct {
	fetcher  *HTTPFetcher
	dir      string
	enabled  bool
	sem      chan struct{}
	mu       sync.Mutex
	resolved map[string]string // 远程URL -> 本地文件名，跨文章复用
}

// NewImageHandler 创建图片处理器
func NewImageHandler(fetcher *HTTPFetcher, cfg *Config) *ImageHandler {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &ImageHandler{
		fetcher:  fetcher,
		dir:      filepath.Join(cfg.OutputDir, "images"),
		enabled:  cfg.DownloadImages,
		sem:      make(chan struct{}, maxConcurrent),
		resolved: make(map[string]string),
	}
}

// SetDownloadEnabled 控制是否实际发起下载，测试时关闭
func (h *ImageHandler) SetDownloadEnabled(enabled bool) {
	h.enabled = enabled
}

// DownloadAll 下载文章引用的全部图片，填充每张图片的本地文件名。
// 图片收集发生在解析阶段，这里只消费 post.Images。
func (h *ImageHandler) DownloadAll(ctx context.Context, post *Post) error {
	if !h.enabled || len(post.Images) == 0 {
		return nil
	}

	if err := os.MkdirAll(h.dir, 0755); err != nil {
		return NewIOError("创建图片目录失败", err)
	}

	var wg sync.WaitGroup
	for i := range post.Images {
		wg.Add(1)
		go func(img *Image) {
			defer wg.Done()

			select {
			case h.sem <- struct{}{}:
				defer func() { <-h.sem }()
			case <-ctx.Done():
				return
			}

			if err := h.downloadOne(ctx, img); err != nil {
				slog.Warn("下载图片失败", "url", img.URL, "error", err)
				return
			}
			img.Downloaded = true
		}(&post.Images[i])
	}
	wg.Wait()

	return nil
}

// downloadOne 下载单张图片，已有本地文件时跳过
func (h *ImageHandler) downloadOne(ctx context.Context, img *Image) error {
	filename := h.localFilename(img.URL)
	img.Local = filename

	h.mu.Lock()
	if _, ok := h.resolved[img.URL]; ok {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	target := filepath.Join(h.dir, filename)
	if _, err := os.Stat(target); err == nil {
		h.markResolved(img.URL, filename)
		return nil
	}

	data, err := h.fetcher.FetchBytes(ctx, img.URL)
	if err != nil {
		return err
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return NewIOError(fmt.Sprintf("写入图片失败: %s", target), err)
	}

	h.markResolved(img.URL, filename)
	return nil
}

func (h *ImageHandler) markResolved(remoteURL, filename string) {
	h.mu.Lock()
	h.resolved[remoteURL] = filename
	h.mu.Unlock()
}

// localFilename 根据URL派生缓存文件名: sha1前12位 + 原扩展名
func (h *ImageHandler) localFilename(remoteURL string) string {
	sum := sha1.Sum([]byte(remoteURL))
	name := hex.EncodeToString(sum[:])[:12]

	ext := ""
	if u, err := url.Parse(remoteURL); err == nil {
		ext = path.Ext(u.Path)
	}
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	return name + ext
}

// RewriteContent 将正文片段中已下载图片的src替换为本地相对路径。
// 未能下载的图片保留远程地址。
func (h *ImageHandler) RewriteContent(post *Post) {
	if post.ContentHTML == "" {
		return
	}

	local := make(map[string]string, len(post.Images))
	for _, img := range post.Images {
		if img.Downloaded && img.Local != "" {
			local[img.URL] = img.Local
		}
	}
	if len(local) == 0 {
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(post.ContentHTML))
	if err != nil {
		slog.Warn("改写正文图片引用失败", "url", post.URL, "error", err)
		return
	}

	base, _ := url.Parse(post.URL)
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := firstAttr(img, "src", "data-src", "data-original")
		if src == "" {
			return
		}
		full := src
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				full = base.ResolveReference(ref).String()
			}
		}
		filename, ok := local[full]
		if !ok {
			return
		}
		img.SetAttr("src", imageRelPrefix+filename)
		img.RemoveAttr("data-src")
		img.RemoveAttr("data-original")
	})

	var b strings.Builder
	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		if fragment, err := goquery.OuterHtml(s); err == nil {
			b.WriteString(fragment)
		}
	})
	if b.Len() > 0 {
		post.ContentHTML = b.String()
	}
}
