package sina2html

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeHTMLText 标准化HTML文本内容：折叠空白并去除首尾空格
func NormalizeHTMLText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(text))

	prevSpace := false
	for _, char := range text {
		if unicode.IsSpace(char) {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		} else {
			result.WriteRune(char)
			prevSpace = false
		}
	}

	return strings.TrimSpace(result.String())
}

// TruncateText 按字符数截断文本并添加省略号。
// 进度页的标题用它限宽，中文标题不能截在半个字符上。
func TruncateText(text string, maxLength int) string {
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	return string([]rune(text)[:maxLength]) + "..."
}
