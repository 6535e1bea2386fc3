package processor

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// 系统角色的固定描述，命中短路关键词时直接返回
const systemCharacterDescription = "The Wonderland Manekin is a playable system character representing the Miliastra Wonderland gameplay mode in Genshin Impact."

// 系统角色短路关键词
var systemCharacterKeywords = []string{"wonderland", "gameplay mode", "system character"}

// 激进的重分词规则，仅用于描述合成阶段
// 在通用归一化之外额外拆开"is"+大写、"character"/"Archon"/"Harbinger"粘连
var respaceRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`([a-z])([A-Z])`), "$1 $2"},
	{regexp.MustCompile(`(is)([A-Z])`), "$1 $2"},
	{regexp.MustCompile(`(?i)([a-zA-Z])(character)`), "$1 character"},
	{regexp.MustCompile(`([a-zA-Z])(Archon)`), "$1 $2"},
	{regexp.MustCompile(`([a-zA-Z])(Harbinger)`), "$1 $2"},
	{regexp.MustCompile(`\s+`), " "},
}

// 身份揭示句式，命中即认为该句携带角色背景信息
var roleRevealExprs = []string{
	`is later revealed to be`,
	`is the .*? archon`,
	`is the .*? harbinger`,
	`a consultant of`,
	`former .*? of`,
	`leader of`,
	`founder of`,
	`from another world`,
	`crossover character`,
}

var roleRevealRes = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(roleRevealExprs))
	for _, expr := range roleRevealExprs {
		res = append(res, regexp.MustCompile(`(?i)`+expr))
	}
	return res
}()

// 评分关键词
var (
	identityKeywords = []string{
		"archon", "god", "deity", "immortal", "former", "current",
		"leader", "founder", "captain", "consultant", "knight",
		"descendant", "wander", "guardian",
	}
	noiseKeywords = []string{
		"voice actor", "english", "chinese", "japanese", "birthday",
		"constellation", "release date", "featured", "event wish",
		"how to obtain",
	}
	articleOpenRe = regexp.MustCompile(`(?i)^(a|an|the)\s+`)
	pronounIsRe   = regexp.MustCompile(`(?i)\b(he|she)\s+is\b`)
)

// respace 对介绍文本做激进重分词
func respace(text string) string {
	for _, rule := range respaceRules {
		text = rule.re.ReplaceAllString(text, rule.repl)
	}
	return strings.TrimSpace(text)
}

// SplitSentences 按句末标点切分，标点保留在前句末尾
func SplitSentences(text string) []string {
	var sentences []string
	var buf strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		buf.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') &&
			i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			s := strings.TrimSpace(buf.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			buf.Reset()
		}
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// SynthesizeDescription 为角色合成一段背景描述
// 各层按固定优先级叠加片段，最多取前3段拼接，重复片段只收一次
func SynthesizeDescription(name, url, introduction string, sections map[string]string) string {
	combined := strings.ToLower(name + url + introduction)
	for _, kw := range systemCharacterKeywords {
		if strings.Contains(combined, kw) {
			return systemCharacterDescription
		}
	}

	var fragments []string
	seen := make(map[string]struct{})
	add := func(fragment string) {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			return
		}
		if _, ok := seen[fragment]; ok {
			return
		}
		seen[fragment] = struct{}{}
		fragments = append(fragments, fragment)
	}

	// 官方介绍章节优先
	for key, body := range sections {
		if strings.EqualFold(key, "official introduction") && len(body) > 200 {
			add(strings.TrimSpace(body))
			break
		}
	}

	respaced := respace(introduction)

	// 结构标记后的句子
	for _, s := range markerSentences(name, respaced) {
		add(s)
	}

	// 身份揭示句
	for _, sentence := range SplitSentences(respaced) {
		if len(sentence) < 40 || len(sentence) > 300 {
			continue
		}
		for _, re := range roleRevealRes {
			if re.MatchString(sentence) {
				add(sentence)
				break
			}
		}
	}

	// 通用句子评分兜底
	for _, s := range scoredSentences(name, respaced) {
		add(s)
	}

	if len(fragments) == 0 {
		if sentences := SplitSentences(respaced); len(sentences) > 0 {
			add(sentences[0])
		} else if len(respaced) > 300 {
			add(respaced[:300])
		} else {
			add(respaced)
		}
	}

	if len(fragments) > 3 {
		fragments = fragments[:3]
	}
	return Normalize(strings.Join(fragments, " "))
}

// markerSentences 在重分词文本中定位结构标记，收集每个标记之后的背景句
// 每个标记取其匹配结束位置起800字符内的前3句，保留长度在40到400之间的句子；
// 多个标记的结果全部累积，重复句交给上游去重
func markerSentences(name, respaced string) []string {
	quoted := regexp.QuoteMeta(name)
	markers := []string{
		`(?i)Playable Characters\s*` + quoted,
		`(?i)Playable Characters.*?` + quoted,
		`(?i)` + quoted + `\s+is\s+a\s+playable`,
	}

	var picked []string
	for _, marker := range markers {
		re, err := regexp.Compile(marker)
		if err != nil {
			continue
		}
		loc := re.FindStringIndex(respaced)
		if loc == nil {
			continue
		}

		tail := respaced[loc[1]:]
		if len(tail) > 800 {
			tail = tail[:800]
		}

		sentences := SplitSentences(tail)
		if len(sentences) > 3 {
			sentences = sentences[:3]
		}
		for _, sentence := range sentences {
			sentence = strings.TrimSpace(sentence)
			if len(sentence) >= 40 && len(sentence) <= 400 {
				picked = append(picked, sentence)
			}
		}
	}
	return picked
}

// scoredSentences 对全部句子按启发式规则打分，保留得分不低于4的前3句
func scoredSentences(name, respaced string) []string {
	type scored struct {
		sentence string
		score    int
	}
	var candidates []scored

	nameLower := strings.ToLower(name)
	for _, sentence := range SplitSentences(respaced) {
		if len(sentence) < 30 || len(sentence) > 400 {
			continue
		}
		lower := strings.ToLower(sentence)
		score := 0
		if articleOpenRe.MatchString(sentence) {
			score += 3
		}
		if pronounIsRe.MatchString(sentence) {
			score += 3
		}
		if nameLower != "" && strings.Contains(lower, nameLower) {
			score += 4
		}
		for _, kw := range identityKeywords {
			if strings.Contains(lower, kw) {
				score += 2
			}
		}
		for _, kw := range noiseKeywords {
			if strings.Contains(lower, kw) {
				score -= 4
			}
		}
		if score >= 4 {
			candidates = append(candidates, scored{sentence: sentence, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var result []string
	for i, c := range candidates {
		if i == 3 {
			break
		}
		result = append(result, c.sentence)
	}
	return result
}
