package processor

// CorpusStats 语料库的字段分布统计
type CorpusStats struct {
	Total           int            `json:"total"`             // 角色总数
	ByElement       map[string]int `json:"by_element"`        // 按元素分布
	ByWeapon        map[string]int `json:"by_weapon"`         // 按武器分布
	ByRegion        map[string]int `json:"by_region"`         // 按地区分布
	ByRarity        map[int]int    `json:"by_rarity"`         // 按稀有度分布
	ByRole          map[string]int `json:"by_role"`           // 按定位摘要分布
	ByCharacterType map[string]int `json:"by_character_type"` // 按角色类型分布
	MissingFields   map[string]int `json:"missing_fields"`    // 关键字段缺失计数
	ChunkCount      int            `json:"chunk_count"`       // 切块总数
}

// ComputeStats 统计已处理角色的字段分布
// 空字段计入"Unknown"桶，方便发现提取失败的角色；
// missing_fields统计element/weapon/region/description/voice_actors的缺失，
// 描述短于50字符也算缺失
func ComputeStats(characters []*CharacterInfo, chunks []Chunk) *CorpusStats {
	stats := &CorpusStats{
		Total:           len(characters),
		ByElement:       make(map[string]int),
		ByWeapon:        make(map[string]int),
		ByRegion:        make(map[string]int),
		ByRarity:        make(map[int]int),
		ByRole:          make(map[string]int),
		ByCharacterType: make(map[string]int),
		MissingFields: map[string]int{
			"element":      0,
			"weapon":       0,
			"region":       0,
			"description":  0,
			"voice_actors": 0,
		},
		ChunkCount: len(chunks),
	}
	for _, c := range characters {
		stats.ByElement[orUnknown(c.Element)]++
		stats.ByWeapon[orUnknown(c.Weapon)]++
		stats.ByRegion[orUnknown(c.Region)]++
		stats.ByRarity[c.Rarity]++
		stats.ByRole[orUnknown(c.RoleSummary)]++
		stats.ByCharacterType[orUnknown(c.CharacterType)]++

		if c.Element == "" {
			stats.MissingFields["element"]++
		}
		if c.Weapon == "" {
			stats.MissingFields["weapon"]++
		}
		if c.Region == "" {
			stats.MissingFields["region"]++
		}
		if len(c.Description) < 50 {
			stats.MissingFields["description"]++
		}
		if len(c.VoiceActors) == 0 {
			stats.MissingFields["voice_actors"]++
		}
	}
	return stats
}
