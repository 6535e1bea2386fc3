package processor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProcess 测试单角色处理流水线
func TestProcess(t *testing.T) {
	p := NewProcessor()

	t.Run("glued wiki text end to end", func(t *testing.T) {
		raw := &RawCharacter{
			Name:         "Diluc",
			URL:          "https://genshin-impact.fandom.com/wiki/Diluc",
			Introduction: "DilucisaPyrocharacterwhousesClaymore.",
		}
		info, err := p.Process(raw)
		require.NoError(t, err)

		assert.Equal(t, "Pyro", info.Element)
		assert.Equal(t, "Claymore", info.Weapon)
		assert.Equal(t, 5, info.Rarity)
		assert.Equal(t, "Unknown", info.RoleSummary)
		assert.Equal(t, []string{"Wishes"}, info.HowToObtain)
		assert.Equal(t, "Biological", info.CharacterType)
		assert.Equal(t, "Diluc is a Pyro character who uses Claymore.", info.Description)
		assert.Contains(t, info.FullText, "# Diluc")
	})

	t.Run("sections cleaned and filtered", func(t *testing.T) {
		raw := &RawCharacter{
			Name:         "Jean",
			Introduction: "Jean is the Acting Grand Master of the Knights of Favonius.",
			Sections: map[string]string{
				"Personality[2]": "Jean carries the burden of Mondstadt on her shoulders every single day.",
				"Stub":           "too short",
			},
		}
		info, err := p.Process(raw)
		require.NoError(t, err)

		require.Contains(t, info.Sections, "Personality")
		assert.NotContains(t, info.Sections, "Personality[2]")
		assert.NotContains(t, info.Sections, "Stub")
	})

	t.Run("extractors read the introduction only", func(t *testing.T) {
		raw := &RawCharacter{
			Name:         "Yelan",
			Introduction: "Yelan is a playable Hydro character in Genshin Impact. She wields a Bow and hails from Mondstadt.",
			FullText:     "Yelan Trivia: she once visited Liyue and borrowed a Sword from a Pyro traveler.",
		}
		info, err := p.Process(raw)
		require.NoError(t, err)

		assert.Equal(t, "Hydro", info.Element, "元素只能来自介绍文本")
		assert.Equal(t, "Bow", info.Weapon, "武器只能来自介绍文本")
		assert.Equal(t, "Mondstadt", info.Region, "地区只能来自介绍文本")
	})

	t.Run("nil input rejected", func(t *testing.T) {
		_, err := p.Process(nil)
		assert.Error(t, err)
	})

	t.Run("missing name defaults to Unknown", func(t *testing.T) {
		info, err := p.Process(&RawCharacter{Introduction: "A Pyro character who uses a Sword."})
		require.NoError(t, err, "缺失名称不应该报错")
		assert.Equal(t, "Unknown", info.Name)
		assert.Equal(t, "Pyro", info.Element)
	})

	t.Run("determinism across runs", func(t *testing.T) {
		raw := &RawCharacter{
			Name:         "Zhongli",
			Introduction: "Zhongli is a playable Geo character in Genshin Impact who works as a consultant of the Wangsheng Funeral Parlor.",
			Sections: map[string]string{
				"Personality": "A calm and knowledgeable gentleman of Liyue who recalls ancient history with ease.",
			},
		}
		first, err := p.Process(raw)
		require.NoError(t, err)
		second, err := p.Process(raw)
		require.NoError(t, err)
		assert.Equal(t, first.FullText, second.FullText)
		assert.Equal(t, first.Description, second.Description)
	})
}

// TestProcessAll 测试批量处理的容错行为
func TestProcessAll(t *testing.T) {
	p := NewProcessor()

	raws := []*RawCharacter{
		{Name: "Diluc", Introduction: "DilucisaPyrocharacterwhousesClaymore."},
		nil,
		{Name: "Yelan", Introduction: "Yelan is a playable Hydro character in Genshin Impact who claims to work for the Ministry of Civil Affairs."},
	}

	result := p.ProcessAll(raws)

	t.Run("partial failure tolerated", func(t *testing.T) {
		assert.Equal(t, 2, result.Succeeded)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, []string{"#1"}, result.FailedList)
	})

	t.Run("characters keep input order", func(t *testing.T) {
		require.Len(t, result.Characters, 2)
		assert.Equal(t, "Diluc", result.Characters[0].Name)
		assert.Equal(t, "Yelan", result.Characters[1].Name)
	})

	t.Run("nameless record still processed", func(t *testing.T) {
		nameless := p.ProcessAll([]*RawCharacter{{Introduction: "A Geo character from Liyue."}})
		assert.Equal(t, 1, nameless.Succeeded)
		assert.Equal(t, 0, nameless.Failed)
		require.Len(t, nameless.Characters, 1)
		assert.Equal(t, "Unknown", nameless.Characters[0].Name)
	})

	t.Run("chunks follow character order", func(t *testing.T) {
		require.NotEmpty(t, result.Chunks)
		assert.True(t, strings.HasPrefix(result.Chunks[0].ID, "diluc_"))
		assert.True(t, strings.HasPrefix(result.Chunks[len(result.Chunks)-1].ID, "yelan_"))
	})

	t.Run("empty batch", func(t *testing.T) {
		empty := p.ProcessAll(nil)
		assert.Equal(t, 0, empty.Succeeded)
		assert.Equal(t, 0, empty.Failed)
		assert.Empty(t, empty.Chunks)
	})
}

// TestComputeStats 测试语料统计
func TestComputeStats(t *testing.T) {
	characters := []*CharacterInfo{
		{
			Name: "Diluc", Element: "Pyro", Weapon: "Claymore", Region: "Mondstadt", Rarity: 5,
			RoleSummary: "On-field DPS", CharacterType: "Biological",
			Description: strings.Repeat("The uncrowned king of Mondstadt. ", 3),
			VoiceActors: map[string]string{"english": "Sean Chiplock"},
		},
		{
			Name: "Amber", Element: "Pyro", Weapon: "Bow", Region: "Mondstadt", Rarity: 4,
			RoleSummary: "Support", CharacterType: "Biological",
			Description: "short",
		},
		{Name: "Mystery", Rarity: 4},
	}
	chunks := []Chunk{{ID: "a"}, {ID: "b"}}

	stats := ComputeStats(characters, chunks)

	t.Run("distribution buckets", func(t *testing.T) {
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.ByElement["Pyro"])
		assert.Equal(t, 1, stats.ByElement["Unknown"])
		assert.Equal(t, 2, stats.ByRarity[4])
		assert.Equal(t, 1, stats.ByRarity[5])
		assert.Equal(t, 2, stats.ChunkCount)
	})

	t.Run("role and type buckets", func(t *testing.T) {
		assert.Equal(t, 1, stats.ByRole["On-field DPS"])
		assert.Equal(t, 1, stats.ByRole["Support"])
		assert.Equal(t, 1, stats.ByRole["Unknown"])
		assert.Equal(t, 2, stats.ByCharacterType["Biological"])
		assert.Equal(t, 1, stats.ByCharacterType["Unknown"])
	})

	t.Run("missing field counts", func(t *testing.T) {
		assert.Equal(t, 1, stats.MissingFields["element"])
		assert.Equal(t, 1, stats.MissingFields["weapon"])
		assert.Equal(t, 1, stats.MissingFields["region"])
		assert.Equal(t, 2, stats.MissingFields["description"], "过短的描述也算缺失")
		assert.Equal(t, 2, stats.MissingFields["voice_actors"])
	})
}
