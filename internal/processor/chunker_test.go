package processor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCharacter() *CharacterInfo {
	return &CharacterInfo{
		Name:        "Hu Tao",
		Element:     "Pyro",
		Weapon:      "Polearm",
		Rarity:      5,
		Region:      "Liyue",
		RoleSummary: "On-Field / DPS",
		HowToObtain: []string{"Wishes"},
		SpecialDish: "Ghostly March",
		VoiceActors: map[string]string{"english": "Brianna Knickerbocker"},
		Description: strings.Repeat("The 77th Director of the Wangsheng Funeral Parlor. ", 2),
		Sections: map[string]string{
			"Personality": "A quirky and cheerful girl who treats the boundary of life and death with respect.",
			"Tiny":        strings.Repeat("x", 40),
		},
	}
}

// TestChunkCharacter 测试单角色切块
func TestChunkCharacter(t *testing.T) {
	t.Run("all chunk kinds emitted", func(t *testing.T) {
		chunks := ChunkCharacter(testCharacter())
		require.Len(t, chunks, 4)
		assert.Equal(t, ChunkTypeBasicInfo, chunks[0].ChunkType)
		assert.Equal(t, ChunkTypeDescription, chunks[1].ChunkType)
		assert.Equal(t, ChunkTypeMetaInfo, chunks[2].ChunkType)
		assert.Equal(t, ChunkTypeSection, chunks[3].ChunkType)
		assert.Equal(t, "Personality", chunks[3].SectionName)
	})

	t.Run("chunk ids derived from name", func(t *testing.T) {
		chunks := ChunkCharacter(testCharacter())
		assert.Equal(t, "hu_tao_basic", chunks[0].ID)
		assert.Equal(t, "hu_tao_description", chunks[1].ID)
		assert.Equal(t, "hu_tao_meta", chunks[2].ID)
		assert.Equal(t, "hu_tao_personality", chunks[3].ID)
	})

	t.Run("content never empty", func(t *testing.T) {
		for _, chunk := range ChunkCharacter(testCharacter()) {
			assert.NotEmpty(t, strings.TrimSpace(chunk.Content), "切块 %s 的内容不能为空", chunk.ID)
		}
	})

	t.Run("metadata narrowed per chunk kind", func(t *testing.T) {
		chunks := ChunkCharacter(testCharacter())

		basic := chunks[0].Metadata
		assert.Equal(t, "Pyro", basic["element"])
		assert.Equal(t, "Polearm", basic["weapon"])
		assert.Equal(t, 5, basic["rarity"])
		assert.Equal(t, "On-Field / DPS", basic["role_summary"])

		description := chunks[1].Metadata
		assert.Equal(t, "Pyro", description["element"])
		assert.Equal(t, "Liyue", description["region"])
		assert.NotContains(t, description, "rarity", "描述块不携带星级")
		assert.NotContains(t, description, "role_summary")

		meta := chunks[2].Metadata
		assert.Equal(t, "Pyro", meta["element"])
		assert.Contains(t, meta, "url")
		assert.NotContains(t, meta, "weapon", "元信息块只带元素和链接")
		assert.NotContains(t, meta, "region")
	})

	t.Run("basic chunk renders markdown block", func(t *testing.T) {
		chunks := ChunkCharacter(testCharacter())
		content := chunks[0].Content
		assert.True(t, strings.HasPrefix(content, "# Hu Tao\n"))
		assert.Contains(t, content, "## Basic Information")
		assert.Contains(t, content, "- Element: Pyro")
		assert.Contains(t, content, "- Rarity: 5-Star")
		assert.Contains(t, content, "- Role: On-Field / DPS")
	})

	t.Run("prose chunks carry titled headers", func(t *testing.T) {
		chunks := ChunkCharacter(testCharacter())
		assert.True(t, strings.HasPrefix(chunks[1].Content, "# Hu Tao - Description\n"))
		assert.True(t, strings.HasPrefix(chunks[3].Content, "# Hu Tao - Personality\n"))
	})

	t.Run("meta chunk renders bullet sections", func(t *testing.T) {
		chunks := ChunkCharacter(testCharacter())
		content := chunks[2].Content
		assert.True(t, strings.HasPrefix(content, "# Hu Tao - Additional Info\n"))
		assert.Contains(t, content, "## Voice Actors\n- English: Brianna Knickerbocker")
		assert.Contains(t, content, "## Special Dish\n- Ghostly March")
		assert.Contains(t, content, "## How to Obtain\n- Wishes")
	})

	t.Run("short description emits no description chunk", func(t *testing.T) {
		c := testCharacter()
		c.Description = strings.Repeat("y", 40)
		chunks := ChunkCharacter(c)
		for _, chunk := range chunks {
			assert.NotEqual(t, ChunkTypeDescription, chunk.ChunkType)
		}
		assert.Equal(t, ChunkTypeBasicInfo, chunks[0].ChunkType)
	})

	t.Run("meta chunk requires voice actors or dish", func(t *testing.T) {
		c := testCharacter()
		c.VoiceActors = nil
		c.SpecialDish = ""
		for _, chunk := range ChunkCharacter(c) {
			assert.NotEqual(t, ChunkTypeMetaInfo, chunk.ChunkType)
		}
	})

	t.Run("short sections skipped", func(t *testing.T) {
		for _, chunk := range ChunkCharacter(testCharacter()) {
			assert.NotEqual(t, "hu_tao_tiny", chunk.ID)
		}
	})

	t.Run("basic chunk falls back to unknown labels", func(t *testing.T) {
		c := &CharacterInfo{Name: "Mystery", Rarity: 4, RoleSummary: "Unknown", HowToObtain: []string{"Wishes"}}
		chunks := ChunkCharacter(c)
		require.NotEmpty(t, chunks)
		assert.Contains(t, chunks[0].Content, "Unknown")
	})
}

// TestChunkAll 测试批量切块的顺序稳定性
func TestChunkAll(t *testing.T) {
	first := testCharacter()
	second := testCharacter()
	second.Name = "Yelan"

	chunks := ChunkAll([]*CharacterInfo{first, second})
	require.NotEmpty(t, chunks)

	// 输入顺序决定输出顺序
	var characters []string
	for _, chunk := range chunks {
		characters = append(characters, chunk.Character)
	}
	lastHuTao := -1
	firstYelan := len(chunks)
	for i, name := range characters {
		if name == "Hu Tao" && i > lastHuTao {
			lastHuTao = i
		}
		if name == "Yelan" && i < firstYelan {
			firstYelan = i
		}
	}
	assert.Less(t, lastHuTao, firstYelan)
}
