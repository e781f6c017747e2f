package sina2html

import (
	"strings"
	"testing"
)

func TestValidateRequiresUID(t *testing.T) {
	cfg := NewDefaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing uid")
	}
	if !IsErrorType(err, ConfigError) {
		t.Fatalf("unexpected error type: %v", err)
	}
}

func TestValidateRequiresTemplatePlaceholders(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.UID = "1267415599"
	cfg.ListURLTemplate = "https://blog.sina.com.cn/s/articlelist_{uid}_0_1.html"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for template without {page}")
	}
	if !strings.Contains(err.Error(), "{page}") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsInvalidSelector(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.UID = "1267415599"
	cfg.Selectors.Content = []string{"div[["}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid selector")
	}
	if !IsErrorType(err, ConfigError) {
		t.Fatalf("unexpected error type: %v", err)
	}
}

func TestValidateRejectsMetaListLink(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.UID = "1267415599"
	cfg.Selectors.ListLink = "meta:og:url"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for meta list_link")
	}
	if !IsErrorType(err, ConfigError) {
		t.Fatalf("unexpected error type: %v", err)
	}
	if !strings.Contains(err.Error(), "meta") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsInvalidArticleURLRegex(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.UID = "1267415599"
	cfg.ArticleURLRegex = "blog_([0-9"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestValidateRejectsNonPositiveLimits(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.UID = "1267415599"
	cfg.MaxPages = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max_pages = 0")
	}

	cfg = NewDefaultConfig()
	cfg.UID = "1267415599"
	cfg.MaxConcurrent = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative max_concurrent")
	}
}

func TestValidateAcceptsDefaultConfigWithUID(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.UID = "1267415599"
	cfg.Selectors = Selectors{
		ListLink: "span.atc_title a",
		Title:    []string{"h2.titName", "meta:og:title"},
		Time:     []string{`xpath://span[@class='time']`},
		Content:  []string{"div#sina_keyword_ad_area2"},
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListPageURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.UID = "1267415599"

	got := cfg.ListPageURL(3)
	want := "https://blog.sina.com.cn/s/articlelist_1267415599_0_3.html"
	if got != want {
		t.Fatalf("ListPageURL(3) = %q, want %q", got, want)
	}
}

func TestStableIDFromURL(t *testing.T) {
	got := StableIDFromURL("http://blog.sina.com.cn/s/blog_4b8d1a2f0102wxyz.html")
	if got != "blog_4b8d1a2f0102wxyz" {
		t.Fatalf("unexpected stable id: %q", got)
	}

	// 无法识别的URL退化为内容哈希，必须稳定且非空
	first := StableIDFromURL("http://example.com/post/42")
	second := StableIDFromURL("http://example.com/post/42/")
	if first == "" || first != second {
		t.Fatalf("hash fallback must be stable: %q vs %q", first, second)
	}
	if len(first) != 12 {
		t.Fatalf("unexpected hash id length: %q", first)
	}
}
