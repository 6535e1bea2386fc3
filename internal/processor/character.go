package processor

import (
	"fmt"
	"sort"
	"strings"
)

// RawCharacter 爬虫产出的原始角色记录
// 字段均为未清洗的wiki文本，由爬虫或JSON快照提供
type RawCharacter struct {
	Name         string            `json:"name"`              // 角色名称
	URL          string            `json:"url"`               // wiki页面URL
	Infobox      map[string]string `json:"infobox,omitempty"` // 信息框键值对
	Introduction string            `json:"introduction"`      // 页面开头的介绍段落
	Sections     map[string]string `json:"sections"`          // 章节标题 -> 章节正文
	FullText     string            `json:"full_text,omitempty"`
}

// RoleFlags 角色定位标志
// 各标志相互独立，一个角色可以同时是DPS和辅助
type RoleFlags struct {
	OnField       bool `json:"on_field"`      // 站场
	OffField      bool `json:"off_field"`     // 后台
	DPS           bool `json:"dps"`           // 输出
	Support       bool `json:"support"`       // 辅助
	Survivability bool `json:"survivability"` // 生存（治疗/护盾）
}

// Summary 生成可读的定位摘要
// 标签顺序固定，没有任何标志时返回"Unknown"
func (r RoleFlags) Summary() string {
	var parts []string

	if r.OnField {
		parts = append(parts, "On-Field")
	}
	if r.OffField {
		parts = append(parts, "Off-Field")
	}
	if r.DPS {
		parts = append(parts, "DPS")
	}
	if r.Support {
		parts = append(parts, "Support")
	}
	if r.Survivability {
		parts = append(parts, "Healer/Shielder")
	}

	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, " / ")
}

// CharacterInfo 结构化的角色记录
// 所有字段都由提取器从清洗后的介绍文本推导，缺失字段留空
type CharacterInfo struct {
	Name            string            `json:"name"`                        // 角色名称
	URL             string            `json:"url"`                         // wiki页面URL
	Element         string            `json:"element,omitempty"`           // 元素属性
	Weapon          string            `json:"weapon,omitempty"`            // 武器类型
	Rarity          int               `json:"rarity"`                      // 稀有度（4或5）
	Region          string            `json:"region,omitempty"`            // 所属地区
	ModelType       string            `json:"model_type,omitempty"`        // 模型体型
	Title           string            `json:"title,omitempty"`             // 称号/别名
	RealName        string            `json:"real_name,omitempty"`         // 真实姓名
	Constellation   string            `json:"constellation,omitempty"`     // 命之座
	CharacterType   string            `json:"character_type,omitempty"`    // 角色类型（生物/人造等）
	Affiliations    []string          `json:"affiliations,omitempty"`      // 所属组织
	Roles           RoleFlags         `json:"roles"`                       // 定位标志
	RoleSummary     string            `json:"role_summary"`                // 定位摘要
	HowToObtain     []string          `json:"how_to_obtain"`               // 获取方式，至少包含一项
	EventWishCount  *int              `json:"event_wishes_count,omitempty"` // 限定祈愿次数
	ReleaseDate     string            `json:"release_date,omitempty"`      // 上线日期
	Birthday        string            `json:"birthday,omitempty"`          // 生日
	SpecialDish     string            `json:"special_dish,omitempty"`      // 特殊料理
	Namecard        string            `json:"namecard,omitempty"`          // 名片
	VoiceActors     map[string]string `json:"voice_actors,omitempty"`      // 语言 -> 配音演员
	Description     string            `json:"description"`                 // 合成的背景描述
	Sections        map[string]string `json:"sections,omitempty"`          // 清洗后的章节
	FullText        string            `json:"full_text"`                   // 用于检索的规范文本
}

// 配音语言的固定渲染顺序
var voiceActorLanguages = []string{"english", "chinese", "japanese", "korean"}

// 渲染时跳过的章节（与检索无关的数值表格类章节）
var skipSections = []string{"Ascensions", "Stats", "Wishes", "Bargains", "Gallery", "Trivia"}

// SectionNames 返回排序后的章节名列表
// 原始记录来自JSON对象，没有可靠的插入顺序，这里统一用字典序保证渲染确定性
func (c *CharacterInfo) SectionNames() []string {
	names := make([]string, 0, len(c.Sections))
	for name := range c.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderText 生成用于检索索引的规范文本
// 块顺序与字段顺序固定，对同一记录的重复调用产生字节级一致的输出
func (c *CharacterInfo) RenderText() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("# %s", c.Name))

	if c.Title != "" {
		parts = append(parts, fmt.Sprintf("Also known as: %s", c.Title))
	}
	if c.RealName != "" && c.RealName != c.Name {
		parts = append(parts, fmt.Sprintf("Real name: %s", c.RealName))
	}

	parts = append(parts, "")

	// 基础信息块，字段顺序固定，缺失字段直接跳过
	parts = append(parts, "## Basic Information")

	basicFields := []struct {
		label string
		value string
	}{
		{"Element", c.Element},
		{"Weapon", c.Weapon},
		{"Rarity", c.rarityLabel()},
		{"Region", c.Region},
		{"Model", c.ModelType},
		{"Birthday", c.Birthday},
		{"Constellation", c.Constellation},
		{"Character Type", c.CharacterType},
	}
	for _, f := range basicFields {
		if f.value != "" {
			parts = append(parts, fmt.Sprintf("- %s: %s", f.label, f.value))
		}
	}

	if len(c.Affiliations) > 0 {
		parts = append(parts, fmt.Sprintf("- Affiliations: %s", strings.Join(c.Affiliations, ", ")))
	}

	parts = append(parts, "")

	if c.RoleSummary != "" {
		parts = append(parts, "## Character Roles")
		parts = append(parts, fmt.Sprintf("- Role: %s", c.RoleSummary))
		parts = append(parts, "")
	}

	if len(c.HowToObtain) > 0 {
		parts = append(parts, "## How to Obtain")
		for _, method := range c.HowToObtain {
			parts = append(parts, fmt.Sprintf("- %s", method))
		}
		if c.EventWishCount != nil {
			parts = append(parts, fmt.Sprintf("- Featured in %d Event Wishes", *c.EventWishCount))
		}
		parts = append(parts, "")
	}

	if c.ReleaseDate != "" {
		parts = append(parts, "## Release Date")
		parts = append(parts, fmt.Sprintf("Released on: %s", c.ReleaseDate))
		parts = append(parts, "")
	}

	if len(c.VoiceActors) > 0 {
		parts = append(parts, "## Voice Actors")
		for _, lang := range voiceActorLanguages {
			if actor, ok := c.VoiceActors[lang]; ok {
				parts = append(parts, fmt.Sprintf("- %s: %s", capitalize(lang), actor))
			}
		}
		parts = append(parts, "")
	}

	if c.SpecialDish != "" {
		parts = append(parts, "## Special Dish")
		parts = append(parts, fmt.Sprintf("- %s", c.SpecialDish))
		parts = append(parts, "")
	}

	if c.Namecard != "" {
		parts = append(parts, "## Namecard")
		parts = append(parts, fmt.Sprintf("- %s", c.Namecard))
		parts = append(parts, "")
	}

	if c.Description != "" {
		parts = append(parts, "## About")
		parts = append(parts, c.Description)
		parts = append(parts, "")
	}

	// 剩余章节，跳过数值表格类章节和过短正文
	for _, name := range c.SectionNames() {
		if sectionSkipped(name) {
			continue
		}
		content := c.Sections[name]
		if len(content) > 30 {
			parts = append(parts, fmt.Sprintf("## %s", name))
			parts = append(parts, content)
			parts = append(parts, "")
		}
	}

	return strings.Join(parts, "\n")
}

// rarityLabel 渲染稀有度标签，如"5-Star"
func (c *CharacterInfo) rarityLabel() string {
	if c.Rarity == 0 {
		return ""
	}
	return fmt.Sprintf("%d-Star", c.Rarity)
}

// sectionSkipped 判断章节名是否命中跳过列表
func sectionSkipped(name string) bool {
	for _, skip := range skipSections {
		if strings.Contains(name, skip) {
			return true
		}
	}
	return false
}

// capitalize 首字母大写
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
