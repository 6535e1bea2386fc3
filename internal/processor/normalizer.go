package processor

import (
	"regexp"
	"strings"
)

// 引用标记（[1]、[edit]、[Note 3]等wiki残留）
var refMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[\d+\]`),
	regexp.MustCompile(`\[edit\]`),
	regexp.MustCompile(`\[Note\s*\d+\]`),
}

// fandom页面里常见的不可见字符
var invisibleChars = []string{
	"ⓘ",      // 信息图标
	"‍", // 零宽连接符
	"­", // 软连字符
}

var (
	lowerUpperRe  = regexp.MustCompile(`([a-z])([A-Z])`)
	letterDigitRe = regexp.MustCompile(`([a-zA-Z])(\d)`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)
	spacePunctRe  = regexp.MustCompile(`\s+([.,!?])`)
)

// stuckRule 粘连词拆分规则
// 规则按顺序独立应用，可以叠加生效
type stuckRule struct {
	re   *regexp.Regexp
	repl string
}

// 爬下来的wiki文本经常丢失词间空格，这组规则针对已知的粘连模式做修复
var stuckRules = []stuckRule{
	{regexp.MustCompile(`(\w)(Card|Wish|Quality|Weapon|Element|Model)`), "$1 $2"},
	{regexp.MustCompile(`(Type|Bonus|Roles|Bio|Birthday|Region|Dish)(\w)`), "$1 $2"},
	{regexp.MustCompile(`(English|Chinese|Japanese|Korean)([A-Z])`), "$1 $2"},
	{regexp.MustCompile(`(Playable\s*Characters)(\w)`), "$1. $2"},
	{regexp.MustCompile(`(Genshin)(Impact)`), "$1 $2"},
	{regexp.MustCompile(`([a-z][a-z])isa\b`), "$1 is a"},
	{regexp.MustCompile(`([a-z])(character)`), "$1 $2"},
	{regexp.MustCompile(`(character)(who|that|from|in)`), "$1 $2"},
	{regexp.MustCompile(`(who)(uses|wields)`), "$1 $2"},
	{regexp.MustCompile(`(in)(Genshin)`), "$1 $2"},
}

// Normalize 清洗爬取的wiki文本
// 依次去除引用标记和不可见字符、拆分粘连单词、规整空白
// 对任意输入总是返回结果，空输入返回空串，且满足幂等性
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	for _, re := range refMarkerPatterns {
		text = re.ReplaceAllString(text, "")
	}

	for _, ch := range invisibleChars {
		text = strings.ReplaceAll(text, ch, "")
	}

	// 小写字母后紧跟大写字母视为词边界
	text = lowerUpperRe.ReplaceAllString(text, "$1 $2")
	// 字母后紧跟数字同样补空格
	text = letterDigitRe.ReplaceAllString(text, "$1 $2")

	for _, rule := range stuckRules {
		text = rule.re.ReplaceAllString(text, rule.repl)
	}

	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = spacePunctRe.ReplaceAllString(text, "$1")

	return strings.TrimSpace(text)
}
