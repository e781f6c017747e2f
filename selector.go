package sina2html

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
)

// 逻辑字段名，解析器按字段名向Resolver请求候选规则
const (
	FieldTitle    = "title"
	FieldTime     = "time"
	FieldCategory = "category"
	FieldTags     = "tags"
	FieldContent  = "content"
)

// RuleKind 提取规则类型
type RuleKind string

const (
	// RuleCSS CSS选择器规则
	RuleCSS RuleKind = "css"

	// RuleMeta meta标签规则，形如 "meta:og:title"，按 property 或 name 匹配
	RuleMeta RuleKind = "meta"

	// RuleXPath XPath规则，形如 "xpath://div[@id='artibody']"
	RuleXPath RuleKind = "xpath"

	// RuleHeuristic 内置主题启发式规则，按字段分派
	RuleHeuristic RuleKind = "heuristic"
)

// Rule 单条提取规则。规则在配置校验阶段编译，运行期直接使用。
type Rule struct {
	Kind RuleKind
	Raw  string

	css  cascadia.Selector
	expr *xpath.Expr
}

// ParseRule 将配置字符串编译为提取规则
func ParseRule(raw string) (Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Rule{}, fmt.Errorf("规则为空")
	}

	if rest, ok := strings.CutPrefix(raw, "meta:"); ok {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return Rule{}, fmt.Errorf("meta 规则缺少属性名")
		}
		return Rule{Kind: RuleMeta, Raw: rest}, nil
	}

	if rest, ok := strings.CutPrefix(raw, "xpath:"); ok {
		rest = strings.TrimSpace(rest)
		expr, err := xpath.Compile(rest)
		if err != nil {
			return Rule{}, fmt.Errorf("编译 XPath 失败: %w", err)
		}
		return Rule{Kind: RuleXPath, Raw: rest, expr: expr}, nil
	}

	sel, err := cascadia.Compile(raw)
	if err != nil {
		return Rule{}, fmt.Errorf("编译 CSS 选择器失败: %w", err)
	}
	return Rule{Kind: RuleCSS, Raw: raw, css: sel}, nil
}

// heuristicRule 字段的内置兜底规则
func heuristicRule(field string) Rule {
	return Rule{Kind: RuleHeuristic, Raw: field}
}

// Resolver decides which extraction rules apply to each logical field.
// Resolution is a pure function of the config: user rules in the order
// given, followed by the built-in heuristic for the field. It never
// fails and always yields at least one candidate.
type Resolver struct {
	selectors *Selectors
}

// NewResolver 创建选择器解析器
func NewResolver(selectors *Selectors) *Resolver {
	if selectors == nil {
		selectors = &Selectors{}
	}
	return &Resolver{selectors: selectors}
}

// FieldRules 返回字段的候选规则列表，优先级从高到低
func (r *Resolver) FieldRules(field string) []Rule {
	var raws []string
	switch field {
	case FieldTitle:
		raws = r.selectors.Title
	case FieldTime:
		raws = r.selectors.Time
	case FieldCategory:
		raws = r.selectors.Category
	case FieldTags:
		raws = r.selectors.Tags
	case FieldContent:
		raws = r.selectors.Content
	}

	rules := make([]Rule, 0, len(raws)+1)
	for _, raw := range raws {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rule, err := ParseRule(raw)
		if err != nil {
			// 配置校验阶段已编译过，这里只可能在跳过校验的直接调用中出现
			slog.Debug("忽略无效规则", "field", field, "rule", raw, "error", err)
			continue
		}
		rules = append(rules, rule)
	}

	return append(rules, heuristicRule(field))
}

// ListLinkRule 返回列表页链接选择器，未配置时返回 false
func (r *Resolver) ListLinkRule() (Rule, bool) {
	if strings.TrimSpace(r.selectors.ListLink) == "" {
		return Rule{}, false
	}
	rule, err := ParseRule(r.selectors.ListLink)
	if err != nil {
		slog.Debug("忽略无效的 list_link 规则", "rule", r.selectors.ListLink, "error", err)
		return Rule{}, false
	}
	return rule, true
}
