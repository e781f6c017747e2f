package sina2html

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCookieFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write cookie file: %v", err)
	}
	return path
}

func TestLoadCookieHeaderPrefersInlineCookie(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Cookie = "SUB=inline"
	cfg.CookieFile = writeCookieFile(t, "SUB=fromfile")

	header, err := LoadCookieHeader(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if header != "SUB=inline" {
		t.Fatalf("inline cookie must win: %q", header)
	}
}

func TestLoadCookieHeaderFromRawHeaderFile(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.CookieFile = writeCookieFile(t, "Cookie: SUB=abc;  SUBP=def\n")

	header, err := LoadCookieHeader(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if header != "SUB=abc; SUBP=def" {
		t.Fatalf("unexpected header: %q", header)
	}
}

func TestLoadCookieHeaderFromNetscapeFile(t *testing.T) {
	content := strings.Join([]string{
		"# Netscape HTTP Cookie File",
		"# This is a generated file! Do not edit.",
		"",
		".sina.com.cn\tTRUE\t/\tFALSE\t2147483647\tSUB\tabc123",
		".sina.com.cn\tTRUE\t/\tTRUE\t2147483647\tSUBP\txyz789",
		"",
	}, "\n")

	cfg := NewDefaultConfig()
	cfg.CookieFile = writeCookieFile(t, content)

	header, err := LoadCookieHeader(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if header != "SUB=abc123; SUBP=xyz789" {
		t.Fatalf("unexpected header: %q", header)
	}
}

func TestParseNetscapeCookiesLastValueWins(t *testing.T) {
	content := strings.Join([]string{
		".sina.com.cn\tTRUE\t/\tFALSE\t0\tSUB\told",
		".sina.com.cn\tTRUE\t/\tFALSE\t0\tOTHER\tkeep",
		".sina.com.cn\tTRUE\t/\tFALSE\t0\tSUB\tnew",
	}, "\n")

	cookies := parseNetscapeCookies(content)
	header := buildCookieRequestHeader(cookies)

	if strings.Contains(header, "SUB=old") {
		t.Fatalf("stale cookie value kept: %q", header)
	}
	if !strings.Contains(header, "SUB=new") || !strings.Contains(header, "OTHER=keep") {
		t.Fatalf("unexpected header: %q", header)
	}
}

func TestLoadCookieHeaderMissingFileIsError(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.CookieFile = filepath.Join(t.TempDir(), "nope.txt")

	if _, err := LoadCookieHeader(cfg); err == nil {
		t.Fatal("expected error for missing cookie file")
	}
}

func TestLoadCookieHeaderEmptyConfigIsNotError(t *testing.T) {
	header, err := LoadCookieHeader(NewDefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if header != "" {
		t.Fatalf("expected empty header, got %q", header)
	}
}
