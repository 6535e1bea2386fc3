package processor

import (
	"fmt"
	"strings"
)

// ChunkType 切块类型
type ChunkType string

const (
	ChunkTypeBasicInfo   ChunkType = "basic_info"
	ChunkTypeDescription ChunkType = "description"
	ChunkTypeMetaInfo    ChunkType = "meta_info"
	ChunkTypeSection     ChunkType = "section"
)

// Chunk 检索切块
// 由结构化角色记录派生，可随时重新生成，不单独维护生命周期
type Chunk struct {
	ID          string         `json:"id"`                     // 角色名+类型后缀构成的标识
	Character   string         `json:"character"`              // 所属角色名称
	ChunkType   ChunkType      `json:"chunk_type"`             // 切块类型
	SectionName string         `json:"section_name,omitempty"` // 章节切块的章节名
	Content     string         `json:"content"`                // 切块正文，永远非空
	Metadata    map[string]any `json:"metadata"`               // 随切块携带的检索元数据
}

// chunkID 生成切块标识：角色名小写、空格转下划线，再拼后缀
// 不同章节名归一化后可能撞出相同标识，下游按后写覆盖处理
func chunkID(name, suffix string) string {
	base := strings.ReplaceAll(strings.ToLower(name), " ", "_")
	return base + "_" + suffix
}

// 各类切块携带的元数据子集按类型收窄：
// 基础信息块带全部检索字段，描述和章节块带元素/武器/地区，元信息块只带元素

func basicMetadata(c *CharacterInfo) map[string]any {
	return map[string]any{
		"element":      c.Element,
		"weapon":       c.Weapon,
		"rarity":       c.Rarity,
		"region":       c.Region,
		"role_summary": c.RoleSummary,
		"url":          c.URL,
	}
}

func proseMetadata(c *CharacterInfo) map[string]any {
	return map[string]any{
		"element": c.Element,
		"weapon":  c.Weapon,
		"region":  c.Region,
		"url":     c.URL,
	}
}

func metaMetadata(c *CharacterInfo) map[string]any {
	return map[string]any{
		"element": c.Element,
		"url":     c.URL,
	}
}

// ChunkCharacter 把单个角色记录拆成检索切块
// 切块顺序固定：基础信息、描述、元信息、各章节（章节按名称排序）
func ChunkCharacter(c *CharacterInfo) []Chunk {
	var chunks []Chunk

	chunks = append(chunks, Chunk{
		ID:        chunkID(c.Name, "basic"),
		Character: c.Name,
		ChunkType: ChunkTypeBasicInfo,
		Content:   renderBasicChunk(c),
		Metadata:  basicMetadata(c),
	})

	if len(c.Description) > 50 {
		chunks = append(chunks, Chunk{
			ID:        chunkID(c.Name, "description"),
			Character: c.Name,
			ChunkType: ChunkTypeDescription,
			Content:   fmt.Sprintf("# %s - Description\n\n%s", c.Name, c.Description),
			Metadata:  proseMetadata(c),
		})
	}

	if len(c.VoiceActors) > 0 || c.SpecialDish != "" {
		chunks = append(chunks, Chunk{
			ID:        chunkID(c.Name, "meta"),
			Character: c.Name,
			ChunkType: ChunkTypeMetaInfo,
			Content:   renderMetaChunk(c),
			Metadata:  metaMetadata(c),
		})
	}

	for _, name := range c.SectionNames() {
		body := c.Sections[name]
		if len(body) <= 50 {
			continue
		}
		suffix := strings.ReplaceAll(strings.ToLower(name), " ", "_")
		chunks = append(chunks, Chunk{
			ID:          chunkID(c.Name, suffix),
			Character:   c.Name,
			ChunkType:   ChunkTypeSection,
			SectionName: name,
			Content:     fmt.Sprintf("# %s - %s\n\n%s", c.Name, name, body),
			Metadata:    proseMetadata(c),
		})
	}

	return chunks
}

// ChunkAll 按输入顺序为全部角色生成切块
func ChunkAll(characters []*CharacterInfo) []Chunk {
	var chunks []Chunk
	for _, c := range characters {
		chunks = append(chunks, ChunkCharacter(c)...)
	}
	return chunks
}

// renderBasicChunk 渲染基础信息切块的markdown块
// 缺失字段以Unknown占位，保证切块内容非空
func renderBasicChunk(c *CharacterInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", c.Name)
	b.WriteString("## Basic Information\n")
	fmt.Fprintf(&b, "- Element: %s\n", orUnknown(c.Element))
	fmt.Fprintf(&b, "- Weapon: %s\n", orUnknown(c.Weapon))
	fmt.Fprintf(&b, "- Rarity: %d-Star\n", c.Rarity)
	fmt.Fprintf(&b, "- Region: %s\n", orUnknown(c.Region))
	fmt.Fprintf(&b, "- Role: %s\n", orUnknown(c.RoleSummary))
	if len(c.Affiliations) > 0 {
		fmt.Fprintf(&b, "- Affiliations: %s\n", strings.Join(c.Affiliations, ", "))
	}
	if c.Birthday != "" {
		fmt.Fprintf(&b, "- Birthday: %s\n", c.Birthday)
	}
	if c.ReleaseDate != "" {
		fmt.Fprintf(&b, "- Release Date: %s\n", c.ReleaseDate)
	}
	return strings.TrimSpace(b.String())
}

// renderMetaChunk 渲染配音/料理等元信息切块的markdown块
// 配音语言按固定顺序输出，保证切块内容可复现
func renderMetaChunk(c *CharacterInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Additional Info\n\n", c.Name)

	if len(c.VoiceActors) > 0 {
		b.WriteString("## Voice Actors\n")
		for _, lang := range voiceActorLanguages {
			if actor, ok := c.VoiceActors[lang]; ok {
				fmt.Fprintf(&b, "- %s: %s\n", capitalize(lang), actor)
			}
		}
		b.WriteString("\n")
	}
	if c.SpecialDish != "" {
		fmt.Fprintf(&b, "## Special Dish\n- %s\n\n", c.SpecialDish)
	}
	if c.Namecard != "" {
		fmt.Fprintf(&b, "## Namecard\n- %s\n\n", c.Namecard)
	}
	if len(c.HowToObtain) > 0 {
		b.WriteString("## How to Obtain\n")
		for _, method := range c.HowToObtain {
			fmt.Fprintf(&b, "- %s\n", method)
		}
	}
	return strings.TrimSpace(b.String())
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
