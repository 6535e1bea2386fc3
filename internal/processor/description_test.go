package processor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSplitSentences 测试句子切分
func TestSplitSentences(t *testing.T) {
	t.Run("punctuation stays attached", func(t *testing.T) {
		sentences := SplitSentences("First sentence. Second one! Third? Trailing fragment")
		require.Len(t, sentences, 4)
		assert.Equal(t, "First sentence.", sentences[0])
		assert.Equal(t, "Second one!", sentences[1])
		assert.Equal(t, "Third?", sentences[2])
		assert.Equal(t, "Trailing fragment", sentences[3])
	})

	t.Run("no boundary inside abbreviated numbers", func(t *testing.T) {
		// 标点后没有空白不算句子边界
		sentences := SplitSentences("Version 5.7 arrived.")
		assert.Len(t, sentences, 1)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, SplitSentences(""))
	})
}

// TestSynthesizeDescription 测试描述合成的各个层级
func TestSynthesizeDescription(t *testing.T) {
	t.Run("system character short circuit", func(t *testing.T) {
		desc := SynthesizeDescription("Manekin", "", "a helper for the gameplay mode tutorial", nil)
		assert.Equal(t, systemCharacterDescription, desc)
	})

	t.Run("short circuit triggered by url", func(t *testing.T) {
		desc := SynthesizeDescription("Someone", "https://wiki.example/Wonderland_Manekin", "ordinary text", nil)
		assert.Equal(t, systemCharacterDescription, desc)
	})

	t.Run("official introduction tier", func(t *testing.T) {
		body := strings.Repeat("A noble of Mondstadt who guards the city with quiet resolve. ", 5)
		sections := map[string]string{"Official Introduction": body}
		desc := SynthesizeDescription("Diluc", "", "", sections)
		assert.Contains(t, desc, "noble of Mondstadt")
	})

	t.Run("playable marker tier", func(t *testing.T) {
		intro := "Amber is a playable Pyro character in Genshin Impact who serves as Outrider of the Knights of Favonius."
		desc := SynthesizeDescription("Amber", "", intro, nil)
		assert.Contains(t, desc, "Outrider of the Knights of Favonius")
	})

	t.Run("glued introduction recovered", func(t *testing.T) {
		desc := SynthesizeDescription("Diluc", "", "DilucisaPyrocharacterwhousesClaymore.", nil)
		assert.Equal(t, "Diluc is a Pyro character who uses Claymore.", desc)
	})

	t.Run("fallback to first sentence", func(t *testing.T) {
		desc := SynthesizeDescription("Nobody", "", "Short intro. More text here.", nil)
		assert.Equal(t, "Short intro.", desc)
	})

	t.Run("at most three fragments", func(t *testing.T) {
		intro := "Zhongli is a playable Geo character in Genshin Impact who works as a consultant of the Wangsheng Funeral Parlor. " +
			"He is later revealed to be the current vessel of the Geo Archon Morax himself. " +
			"The former leader of the adepti watched over Liyue for thousands of years without rest. " +
			"A guardian and deity of contracts, Zhongli values fairness above all other principles. " +
			"The immortal founder of Liyue Harbor still walks among mortals in disguise."
		desc := SynthesizeDescription("Zhongli", "", intro, nil)
		sentences := SplitSentences(desc)
		assert.LessOrEqual(t, len(sentences), 3)
		assert.NotEmpty(t, desc)
	})

	t.Run("duplicate fragments collapsed", func(t *testing.T) {
		intro := "Zhongli is later revealed to be the current vessel of the Geo Archon Morax himself."
		desc := SynthesizeDescription("Zhongli", "", intro, nil)
		// 身份揭示层和评分层命中同一句话时只保留一份
		assert.Equal(t, 1, strings.Count(desc, "current vessel"))
	})
}

// TestMarkerSentences 测试结构标记层的定位规则
func TestMarkerSentences(t *testing.T) {
	t.Run("tail starts after the marker", func(t *testing.T) {
		text := "Amber is a playable Pyro character in Genshin Impact who serves as Outrider of the Knights of Favonius."
		picked := markerSentences("Amber", text)
		require.NotEmpty(t, picked)
		assert.NotContains(t, picked[0], "is a playable", "标记本身不应该进入句子")
		assert.Contains(t, picked[0], "Outrider of the Knights of Favonius")
	})

	t.Run("matching is case insensitive", func(t *testing.T) {
		text := "amber is a playable pyro character in genshin impact who serves as outrider of the knights of favonius."
		picked := markerSentences("Amber", text)
		require.NotEmpty(t, picked, "小写文本也应该命中标记")
		assert.Contains(t, picked[0], "outrider of the knights")
	})

	t.Run("all matching markers contribute", func(t *testing.T) {
		text := "Playable Characters Venti, the bard of Mondstadt, wanders the city streets singing ballads all day. " +
			"Venti is a playable Anemo character in Genshin Impact who loves apples and festivals very much."
		picked := markerSentences("Venti", text)
		assert.GreaterOrEqual(t, len(picked), 2, "多个标记的句子都应该累积")
	})

	t.Run("no marker no sentences", func(t *testing.T) {
		assert.Empty(t, markerSentences("Diluc", "An ordinary paragraph with no structural markers at all."))
	})
}
