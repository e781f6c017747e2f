package sina2html

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
)

// LoadCookieHeader 解析本次运行使用的Cookie请求头。
// 优先使用配置中的内联 cookie 字符串，其次读取 cookie_file。
// 文件内容既可以是原始请求头格式，也可以是浏览器导出的 Netscape 格式。
// Cookie 为空不是错误，部分内容可能需要登录才能访问。
func LoadCookieHeader(cfg *Config) (string, error) {
	if cookie := strings.TrimSpace(cfg.Cookie); cookie != "" {
		return cookie, nil
	}

	path := strings.TrimSpace(cfg.CookieFile)
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", NewIOError(fmt.Sprintf("读取 Cookie 文件失败: %s", path), err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", nil
	}

	if looksLikeNetscapeFile(content) {
		return buildCookieRequestHeader(parseNetscapeCookies(content)), nil
	}

	// 原始请求头格式，可能带 "Cookie:" 前缀
	content = strings.TrimSpace(strings.TrimPrefix(content, "Cookie:"))
	return strings.Join(strings.Fields(content), " "), nil
}

// looksLikeNetscapeFile 判断内容是否为 Netscape cookies.txt 格式
func looksLikeNetscapeFile(content string) bool {
	if strings.HasPrefix(content, "# Netscape HTTP Cookie File") {
		return true
	}
	for line := range strings.Lines(content) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.Count(line, "\t") >= 6
	}
	return false
}

// netscapeCookie Netscape 格式中的一条记录
type netscapeCookie struct {
	Name  string
	Value string
}

// parseNetscapeCookies 解析 Netscape 格式的 cookie 行。
// 每行七列: domain, includeSubdomains, path, secure, expiry, name, value。
func parseNetscapeCookies(content string) []netscapeCookie {
	var cookies []netscapeCookie
	for line := range strings.Lines(content) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		name := strings.TrimSpace(fields[5])
		if name == "" {
			continue
		}
		cookies = append(cookies, netscapeCookie{Name: name, Value: strings.TrimSpace(fields[6])})
	}

	// 同名cookie保留最后一条，与浏览器覆盖行为一致
	reversed := lo.Reverse(cookies)
	unique := lo.UniqBy(reversed, func(c netscapeCookie) string { return c.Name })
	return lo.Reverse(unique)
}

// buildCookieRequestHeader 将cookie记录拼接为请求头的值。
// 请求头只携带 name=value，不包含 Domain/Path 等属性。
func buildCookieRequestHeader(cookies []netscapeCookie) string {
	pairs := lo.FilterMap(cookies, func(c netscapeCookie, _ int) (string, bool) {
		if c.Name == "" {
			return "", false
		}
		return c.Name + "=" + c.Value, true
	})
	return strings.Join(pairs, "; ")
}
