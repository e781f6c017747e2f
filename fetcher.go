package sina2html

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
)

// HTTPFetcher 默认HTTP抓取器实现
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	cookieHeader string
	headers      map[string]string
	maxRetries   int
	retryDelay   time.Duration
}

// NewHTTPFetcher 创建新的HTTP抓取器
func NewHTTPFetcher(cfg *Config) (*HTTPFetcher, error) {
	cookieHeader, err := LoadCookieHeader(cfg)
	if err != nil {
		return nil, err
	}
	if cookieHeader == "" {
		slog.Warn("Cookie 为空，部分内容可能需要登录才能访问")
	}

	return &HTTPFetcher{
		client:       &http.Client{Timeout: cfg.Timeout()},
		userAgent:    cfg.UserAgent,
		cookieHeader: cookieHeader,
		headers:      cfg.Headers,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay(),
	}, nil
}

// FetchPage 抓取指定URL并返回解码为UTF-8的HTML文本。
// 新浪博客的历史页面常见GBK编码，按响应头和meta声明统一转码。
func (f *HTTPFetcher) FetchPage(ctx context.Context, targetURL string) (string, error) {
	resp, err := f.FetchWithRetry(ctx, targetURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", NewFetchError("识别响应编码失败", err, false)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", NewFetchError("读取响应内容失败", err, true)
	}

	return string(body), nil
}

// FetchBytes 抓取二进制内容(图片等)，不做编码转换
func (f *HTTPFetcher) FetchBytes(ctx context.Context, targetURL string) ([]byte, error) {
	resp, err := f.FetchWithRetry(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewFetchError("读取响应内容失败", err, true)
	}
	return body, nil
}

// FetchWithRetry 带重试机制的HTTP请求。
// 网络错误和5xx按瞬时错误重试，4xx直接判定为永久失败。
func (f *HTTPFetcher) FetchWithRetry(ctx context.Context, targetURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("重试请求", "attempt", attempt, "url", targetURL)
			select {
			case <-ctx.Done():
				return nil, NewFetchError("请求被取消", ctx.Err(), false)
			case <-time.After(f.retryDelay):
			}
		}

		resp, err := f.doRequest(ctx, targetURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, NewFetchError("请求被取消", ctx.Err(), false)
			}
			lastErr = NewFetchError(fmt.Sprintf("网络请求失败: %s", targetURL), err, true)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		resp.Body.Close()

		// 4xx不重试
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, NewFetchError(
				fmt.Sprintf("HTTP错误 %d: %s", resp.StatusCode, targetURL), nil, false)
		}

		lastErr = NewFetchError(
			fmt.Sprintf("服务器错误 %d: %s", resp.StatusCode, targetURL), nil, true)
	}

	if lastErr == nil {
		lastErr = NewFetchError(fmt.Sprintf("请求失败: %s", targetURL), nil, true)
	}
	return nil, lastErr
}

// doRequest 执行单个HTTP请求
func (f *HTTPFetcher) doRequest(ctx context.Context, targetURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.cookieHeader != "" {
		req.Header.Set("Cookie", f.cookieHeader)
	}
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	return f.client.Do(req)
}
