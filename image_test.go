package sina2html

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRewriteContentReplacesDownloadedImages(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.OutputDir = t.TempDir()
	h := NewImageHandler(nil, cfg)

	post := &Post{
		URL: "http://blog.sina.com.cn/s/blog_img001.html",
		Images: []Image{
			{URL: "http://s1.sinaimg.cn/a.jpg", Local: "abc123.jpg", Downloaded: true},
			{URL: "http://s1.sinaimg.cn/b.jpg", Local: "", Downloaded: false},
		},
		ContentHTML: `<div><img src="http://s1.sinaimg.cn/a.jpg"/><img src="http://s1.sinaimg.cn/b.jpg"/></div>`,
	}

	h.RewriteContent(post)

	if !strings.Contains(post.ContentHTML, `src="../images/abc123.jpg"`) {
		t.Fatalf("downloaded image not rewritten: %q", post.ContentHTML)
	}
	if !strings.Contains(post.ContentHTML, `src="http://s1.sinaimg.cn/b.jpg"`) {
		t.Fatalf("failed image must keep remote URL: %q", post.ContentHTML)
	}
}

func TestRewriteContentResolvesLazyLoadAttributes(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.OutputDir = t.TempDir()
	h := NewImageHandler(nil, cfg)

	post := &Post{
		URL: "http://blog.sina.com.cn/s/blog_img002.html",
		Images: []Image{
			{URL: "http://s1.sinaimg.cn/lazy.jpg", Local: "lazy999.jpg", Downloaded: true},
		},
		ContentHTML: `<div><img data-src="http://s1.sinaimg.cn/lazy.jpg"/></div>`,
	}

	h.RewriteContent(post)

	if !strings.Contains(post.ContentHTML, `src="../images/lazy999.jpg"`) {
		t.Fatalf("lazy-load image not rewritten: %q", post.ContentHTML)
	}
	if strings.Contains(post.ContentHTML, "data-src") {
		t.Fatalf("data-src attribute must be removed: %q", post.ContentHTML)
	}
}

func TestDownloadAllStoresImagesAndMarksSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.jpg") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("fake-image-bytes"))
	}))
	defer server.Close()

	cfg := NewDefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.MaxRetries = 0
	cfg.RetryDelaySec = 0

	fetcher, err := NewHTTPFetcher(cfg)
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	h := NewImageHandler(fetcher, cfg)

	post := &Post{
		URL: "http://blog.sina.com.cn/s/blog_img003.html",
		Images: []Image{
			{URL: server.URL + "/pic/ok.jpg"},
			{URL: server.URL + "/pic/missing.jpg"},
		},
	}

	if err := h.DownloadAll(context.Background(), post); err != nil {
		t.Fatalf("download all: %v", err)
	}

	if !post.Images[0].Downloaded {
		t.Fatal("successful download must be marked")
	}
	if post.Images[1].Downloaded {
		t.Fatal("failed download must not be marked")
	}

	stored := filepath.Join(cfg.OutputDir, "images", post.Images[0].Local)
	data, err := os.ReadFile(stored)
	if err != nil {
		t.Fatalf("stored image missing: %v", err)
	}
	if string(data) != "fake-image-bytes" {
		t.Fatalf("unexpected image content: %q", string(data))
	}
}

func TestDownloadAllDisabledLeavesImagesUntouched(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.OutputDir = t.TempDir()
	h := NewImageHandler(nil, cfg)
	h.SetDownloadEnabled(false)

	post := &Post{Images: []Image{{URL: "http://s1.sinaimg.cn/a.jpg"}}}
	if err := h.DownloadAll(context.Background(), post); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if post.Images[0].Downloaded || post.Images[0].Local != "" {
		t.Fatalf("disabled handler must not touch images: %+v", post.Images[0])
	}
}

func TestLocalFilenameDerivation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.OutputDir = t.TempDir()
	h := NewImageHandler(nil, cfg)

	withExt := h.localFilename("http://s1.sinaimg.cn/middle/pic.png")
	if !strings.HasSuffix(withExt, ".png") {
		t.Fatalf("expected original extension: %q", withExt)
	}

	noExt := h.localFilename("http://s1.sinaimg.cn/orignal/4b8d1a2f")
	if !strings.HasSuffix(noExt, ".jpg") {
		t.Fatalf("expected .jpg fallback: %q", noExt)
	}

	if h.localFilename("http://a/x.jpg") != h.localFilename("http://a/x.jpg") {
		t.Fatal("filename derivation must be deterministic")
	}
}
