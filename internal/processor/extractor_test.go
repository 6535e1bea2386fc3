package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKeywordExtractors 测试关键词类提取器
func TestKeywordExtractors(t *testing.T) {
	text := Normalize("DilucisaPyrocharacterwhousesClaymore.")

	t.Run("element", func(t *testing.T) {
		assert.Equal(t, "Pyro", ExtractElement(text))
	})

	t.Run("weapon", func(t *testing.T) {
		assert.Equal(t, "Claymore", ExtractWeapon(text))
	})

	t.Run("region", func(t *testing.T) {
		assert.Equal(t, "Mondstadt", ExtractRegion("He owns the Dawn Winery in Mondstadt."))
		assert.Equal(t, "", ExtractRegion("No region mentioned here."))
	})

	t.Run("first candidate wins", func(t *testing.T) {
		// Pyro在候选列表中排在Hydro前面
		assert.Equal(t, "Pyro", ExtractElement("hydro and pyro both appear"))
	})

	t.Run("model type ignores glued spaces", func(t *testing.T) {
		assert.Equal(t, "Medium Female", ExtractModelType("Model TypeMediumFemale"))
		assert.Equal(t, "Tall Male", ExtractModelType("model type tall male"))
		assert.Equal(t, "", ExtractModelType("no model info"))
	})

	t.Run("affiliations collect all in list order", func(t *testing.T) {
		text := "A member of the Adventurers' Guild and formerly of the Knights of Favonius."
		affs := ExtractAffiliations(text)
		require.Len(t, affs, 2)
		// 结果顺序跟随候选列表而不是出现顺序
		assert.Equal(t, []string{"Knights of Favonius", "Adventurers' Guild"}, affs)
	})
}

// TestExtractRarity 测试稀有度判定
func TestExtractRarity(t *testing.T) {
	t.Run("known five star name", func(t *testing.T) {
		assert.Equal(t, 5, ExtractRarity("Zhongli", "arbitrary text without markers"))
	})

	t.Run("name token match", func(t *testing.T) {
		assert.Equal(t, 5, ExtractRarity("Hu Tao", ""))
		assert.Equal(t, 5, ExtractRarity("Raiden Shogun", ""))
	})

	t.Run("textual marker", func(t *testing.T) {
		assert.Equal(t, 5, ExtractRarity("Somebody", "a 5★ character"))
		assert.Equal(t, 5, ExtractRarity("Somebody", "This is a 5-Star character"))
		assert.Equal(t, 5, ExtractRarity("Somebody", Normalize("Quality5")))
	})

	t.Run("defaults to four", func(t *testing.T) {
		assert.Equal(t, 4, ExtractRarity("Amber", "a Pyro archer of Mondstadt"))
		assert.Equal(t, 4, ExtractRarity("", ""))
	})
}

// TestCapturePatternExtractors 测试正则捕获类提取器
func TestCapturePatternExtractors(t *testing.T) {
	t.Run("title from quotes", func(t *testing.T) {
		assert.Equal(t, "Kreideprinz", ExtractTitle(`Albedo, "Kreideprinz", is the Chief Alchemist.`))
	})

	t.Run("title also known as", func(t *testing.T) {
		assert.Equal(t, "the Dark Side of Dawn", ExtractTitle("He is also known as the Dark Side of Dawn."))
	})

	t.Run("title length filter", func(t *testing.T) {
		assert.Equal(t, "", ExtractTitle(`called "AB" by friends`))
	})

	t.Run("constellation", func(t *testing.T) {
		assert.Equal(t, "Noctua", ExtractConstellation("Constellation Noctua 4-Star character"))
	})

	t.Run("constellation rejects story prefix", func(t *testing.T) {
		assert.Equal(t, "", ExtractConstellation("Constellation Story Quest"))
	})

	t.Run("birthday", func(t *testing.T) {
		assert.Equal(t, "April 30", ExtractBirthday("Birthday April 30 Constellation Noctua"))
	})

	t.Run("release date", func(t *testing.T) {
		assert.Equal(t, "September 28, 2020", ExtractReleaseDate("Release Date September 28, 2020"))
		assert.Equal(t, "July 2, 2025", ExtractReleaseDate("Released on July 2, 2025 during version 5.7"))
	})

	t.Run("real name", func(t *testing.T) {
		assert.Equal(t, "Morax", ExtractRealName("Real Name Morax god of contracts"))
	})

	t.Run("special dish", func(t *testing.T) {
		dish := ExtractSpecialDish("Special Dish Once Upon a Time in Mondstadt Namecard Diluc Darknight")
		assert.Equal(t, "Once Upon a Time in Mondstadt", dish)
	})

	t.Run("namecard", func(t *testing.T) {
		card := ExtractNamecard("Namecard Diluc Darknight How to Obtain Wishes")
		assert.Equal(t, "Diluc Darknight", card)
	})

	t.Run("dish keeps parenthetical in name", func(t *testing.T) {
		dish := ExtractSpecialDish("Special Dish Der Weisheit Letzter Schluss (Life) Namecard Eula Ice Crystal")
		assert.Equal(t, "Der Weisheit Letzter Schluss (Life)", dish)
	})

	t.Run("dish and namecard drop reference markers", func(t *testing.T) {
		dish := ExtractSpecialDish("Special Dish Pile 'Em Up[1] Namecard Xiangling Trulla How to Obtain Wishes")
		assert.Equal(t, "Pile 'Em Up", dish)

		card := ExtractNamecard("Namecard Xiangling Trulla[2] How to Obtain Wishes")
		assert.Equal(t, "Xiangling Trulla", card)
	})

	t.Run("event wish count", func(t *testing.T) {
		count := ExtractEventWishCount("promoted or featured with a drop-rate boost in 7 Event Wishes")
		require.NotNil(t, count)
		assert.Equal(t, 7, *count)

		assert.Nil(t, ExtractEventWishCount("never featured anywhere"))
	})

	t.Run("voice actors", func(t *testing.T) {
		text := "English Sean Chiplock (EN) Chinese 孙晔 (Sun Ye) [3] Japanese 小野坂昌也 [4] Korean 김기흥 Additional Voices"
		actors := ExtractVoiceActors(text)
		require.NotNil(t, actors)
		assert.Equal(t, "Sean Chiplock", actors["english"])
		assert.Equal(t, "孙晔", actors["chinese"])
		assert.Equal(t, "小野坂昌也", actors["japanese"])
		assert.Equal(t, "김기흥", actors["korean"])
	})

	t.Run("voice actors absent", func(t *testing.T) {
		assert.Nil(t, ExtractVoiceActors("no cast information here"))
	})
}

// TestExtractRoles 测试定位标志提取
func TestExtractRoles(t *testing.T) {
	t.Run("support and healing without on-field", func(t *testing.T) {
		roles := ExtractRoles("She provides support and healing for the team.")
		assert.False(t, roles.OnField)
		assert.False(t, roles.OffField)
		assert.False(t, roles.DPS)
		assert.True(t, roles.Support)
		assert.True(t, roles.Survivability)
		assert.Equal(t, "Support / Healer/Shielder", roles.Summary())
	})

	t.Run("flags are independent", func(t *testing.T) {
		roles := ExtractRoles("an on-field dps who also offers support")
		assert.True(t, roles.OnField)
		assert.True(t, roles.DPS)
		assert.True(t, roles.Support)
	})

	t.Run("no flags yields unknown summary", func(t *testing.T) {
		roles := ExtractRoles("nothing relevant")
		assert.Equal(t, "Unknown", roles.Summary())
	})

	t.Run("summary order is fixed", func(t *testing.T) {
		roles := RoleFlags{OnField: true, OffField: true, DPS: true, Support: true, Survivability: true}
		assert.Equal(t, "On-Field / Off-Field / DPS / Support / Healer/Shielder", roles.Summary())
	})
}

// TestExtractObtainMethods 测试获取方式提取
func TestExtractObtainMethods(t *testing.T) {
	t.Run("default when nothing matches", func(t *testing.T) {
		assert.Equal(t, []string{"Wishes"}, ExtractObtainMethods("no obtain keywords at all"))
	})

	t.Run("event wish name capture", func(t *testing.T) {
		text := "Obtained from wishes. Event Wish — Sparkling Steps Featured 5 times"
		methods := ExtractObtainMethods(text)
		assert.Contains(t, methods, "Wishes")
		assert.Contains(t, methods, "Event Wish: Sparkling Steps")
	})

	t.Run("quest reward", func(t *testing.T) {
		methods := ExtractObtainMethods("complete the Archon Quest to obtain her")
		assert.Contains(t, methods, "Quest Reward")
	})

	t.Run("paimons bargains", func(t *testing.T) {
		methods := ExtractObtainMethods("available in Paimon's Bargains this month")
		assert.Contains(t, methods, "Paimon's Bargains")
	})

	t.Run("never empty", func(t *testing.T) {
		for _, text := range []string{"", "abc", "random words"} {
			assert.NotEmpty(t, ExtractObtainMethods(text))
		}
	})
}

// TestExtractCharacterType 测试角色类型三分类
func TestExtractCharacterType(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		expected string
	}{
		{"default biological", "an ordinary human from Mondstadt", "Biological"},
		{"adoptive", "the adoptive daughter of the clan", "Adoptive"},
		{"plain synthetic", "a synthetic being of unknown origin", "Synthetic"},
		{"synthetic created", "a synthetic life form, created by the alchemist", "Synthetic (Created)"},
		{"synthetic derived", "a synthetic puppet derived from the original", "Synthetic (Derived)"},
		{"empty text", "", "Biological"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractCharacterType(tc.text))
		})
	}
}
