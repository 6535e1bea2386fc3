package wiki

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yumiao07/genshin-QA-system/internal/processor"
)

// 列表页里混在角色表格中的非角色链接
var listSkipKeywords = []string{
	"Element", "Weapon", "Rarity", "Region",
	"Nation", "Model", "Release", "List",
}

var bracketRe = regexp.MustCompile(`\[.*?\]`)

// parseCharacterList 从列表页的可排序表格中解出角色条目
// 每行只取前两个单元格里的第一个有效链接，跳过Category:等命名空间页面
func parseCharacterList(doc *goquery.Document, baseURL string) []CharacterRef {
	var refs []CharacterRef
	seen := make(map[string]struct{})

	doc.Find("table.sortable").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(rowIdx int, row *goquery.Selection) {
			if rowIdx == 0 {
				return
			}
			row.Find("td").EachWithBreak(func(cellIdx int, cell *goquery.Selection) bool {
				if cellIdx >= 2 {
					return false
				}
				link := cell.Find("a[href]").First()
				if link.Length() == 0 {
					return true
				}

				href, _ := link.Attr("href")
				title := strings.TrimSpace(link.AttrOr("title", ""))

				if !validCharacterLink(href, title, seen) {
					return false
				}

				seen[title] = struct{}{}
				url := href
				if strings.HasPrefix(href, "/") {
					url = baseURL + href
				}
				refs = append(refs, CharacterRef{Name: title, URL: url})
				return false
			})
		})
	})

	return refs
}

// validCharacterLink 判断链接是否指向一个角色页面
func validCharacterLink(href, title string, seen map[string]struct{}) bool {
	if title == "" || len(title) <= 1 || len(title) >= 30 {
		return false
	}
	if !strings.Contains(href, "/wiki/") || strings.Contains(href, ":") {
		return false
	}
	if _, dup := seen[title]; dup {
		return false
	}
	lower := strings.ToLower(title)
	for _, kw := range listSkipKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// parseCharacterPage 把角色页面解析为原始记录
// 同时按页面出现顺序拼出full_text，供后续提取器使用
func parseCharacterPage(doc *goquery.Document, url string) *processor.RawCharacter {
	name := strings.TrimSpace(doc.Find("h1.page-header__title").First().Text())
	if name == "" {
		name = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if name == "" {
		name = "Unknown"
	}

	// 信息框按页面顺序收集，map之外单独留一份有序键值对用于full_text
	type infoPair struct{ key, value string }
	var infoPairs []infoPair
	infobox := make(map[string]string)
	doc.Find("aside.portable-infobox div.pi-item").Each(func(_ int, item *goquery.Selection) {
		key := strings.TrimSpace(item.Find("h3.pi-data-label").First().Text())
		value := strings.TrimSpace(item.Find("div.pi-data-value").First().Text())
		if key != "" && value != "" {
			infoPairs = append(infoPairs, infoPair{key: key, value: value})
			infobox[key] = value
		}
	})

	content := doc.Find("div.mw-parser-output").First()
	if content.Length() == 0 {
		return nil
	}

	// 第一个标题之前的段落作为介绍
	var introParts []string
	content.Children().EachWithBreak(func(_ int, child *goquery.Selection) bool {
		switch goquery.NodeName(child) {
		case "h2", "h3":
			return false
		case "p":
			text := strings.TrimSpace(child.Text())
			if len(text) > 20 {
				introParts = append(introParts, text)
			}
		}
		return true
	})
	introduction := strings.Join(introParts, " ")

	// 各章节：标题到下一个标题之间的段落
	type sectionPair struct{ name, body string }
	var sectionPairs []sectionPair
	sections := make(map[string]string)
	content.Find("h2, h3").Each(func(_ int, heading *goquery.Selection) {
		sectionName := strings.TrimSpace(heading.Find("span.mw-headline").First().Text())
		if sectionName == "" {
			sectionName = strings.TrimSpace(heading.Text())
		}
		sectionName = strings.TrimSpace(bracketRe.ReplaceAllString(sectionName, ""))
		if sectionName == "" {
			return
		}

		var bodyParts []string
		heading.NextUntil("h2, h3").Each(func(_ int, sibling *goquery.Selection) {
			if goquery.NodeName(sibling) != "p" {
				return
			}
			text := strings.TrimSpace(sibling.Text())
			if len(text) > 10 {
				bodyParts = append(bodyParts, text)
			}
		})
		if len(bodyParts) == 0 {
			return
		}

		body := strings.Join(bodyParts, " ")
		sectionPairs = append(sectionPairs, sectionPair{name: sectionName, body: body})
		sections[sectionName] = body
	})

	var fullParts []string
	fullParts = append(fullParts, "Character: "+name)
	for _, pair := range infoPairs {
		fullParts = append(fullParts, pair.key+": "+pair.value)
	}
	if introduction != "" {
		fullParts = append(fullParts, "Introduction: "+introduction)
	}
	for _, pair := range sectionPairs {
		fullParts = append(fullParts, pair.name+": "+pair.body)
	}

	return &processor.RawCharacter{
		Name:         name,
		URL:          url,
		Infobox:      infobox,
		Introduction: introduction,
		Sections:     sections,
		FullText:     strings.Join(fullParts, "\n"),
	}
}
