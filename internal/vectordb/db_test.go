package vectordb

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepository 创建用于测试的内存仓库
func newTestRepository(t *testing.T, dim int) Repository {
	t.Helper()

	repo, err := NewMemoryRepository(Config{
		Type:         "memory",
		Dimension:    dim,
		DistanceType: Cosine,
	})
	require.NoError(t, err, "创建内存仓库不应出错")
	return repo
}

// testDocument 构造一个角色切块文档
func testDocument(id, characterID, character string, vector []float32) Document {
	return Document{
		ID:          id,
		CharacterID: characterID,
		Character:   character,
		ChunkType:   "basic_info",
		Text:        character + " is a playable character in Genshin Impact.",
		Vector:      vector,
		Metadata: map[string]interface{}{
			"element": "Pyro",
		},
	}
}

func TestMemoryRepositoryCRUD(t *testing.T) {
	repo := newTestRepository(t, 3)

	t.Run("添加并获取文档", func(t *testing.T) {
		doc := testDocument("diluc_basic", "diluc", "Diluc", []float32{1, 0, 0})
		require.NoError(t, repo.Add(doc), "添加文档不应出错")

		got, err := repo.Get("diluc_basic")
		require.NoError(t, err, "获取文档不应出错")
		assert.Equal(t, "Diluc", got.Character)
		assert.Equal(t, "diluc", got.CharacterID)
		assert.False(t, got.CreatedAt.IsZero(), "创建时间应被自动设置")
	})

	t.Run("获取不存在的文档", func(t *testing.T) {
		_, err := repo.Get("nonexistent")
		assert.ErrorIs(t, err, ErrDocumentNotFound, "不存在的文档应返回ErrDocumentNotFound")
	})

	t.Run("重复添加覆盖旧文档", func(t *testing.T) {
		doc := testDocument("diluc_basic", "diluc", "Diluc", []float32{0, 1, 0})
		require.NoError(t, repo.Add(doc))

		count, err := repo.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, count, "相同ID重复添加不应增加文档数")
	})

	t.Run("空向量应被拒绝", func(t *testing.T) {
		doc := testDocument("empty_vec", "diluc", "Diluc", nil)
		err := repo.Add(doc)
		assert.ErrorIs(t, err, ErrEmptyVector)
	})

	t.Run("维度不匹配应被拒绝", func(t *testing.T) {
		doc := testDocument("wrong_dim", "diluc", "Diluc", []float32{1, 2})
		err := repo.Add(doc)
		require.Error(t, err, "维度不匹配应返回错误")
	})

	t.Run("删除文档", func(t *testing.T) {
		require.NoError(t, repo.Delete("diluc_basic"))

		_, err := repo.Get("diluc_basic")
		assert.ErrorIs(t, err, ErrDocumentNotFound)

		err = repo.Delete("diluc_basic")
		assert.ErrorIs(t, err, ErrDocumentNotFound, "重复删除应返回ErrDocumentNotFound")
	})
}

func TestMemoryRepositoryDeleteByCharacter(t *testing.T) {
	repo := newTestRepository(t, 3)

	docs := []Document{
		testDocument("diluc_basic", "diluc", "Diluc", []float32{1, 0, 0}),
		testDocument("diluc_description", "diluc", "Diluc", []float32{0, 1, 0}),
		testDocument("amber_basic", "amber", "Amber", []float32{0, 0, 1}),
	}
	require.NoError(t, repo.AddBatch(docs), "批量添加不应出错")

	t.Run("删除角色的所有切块", func(t *testing.T) {
		require.NoError(t, repo.DeleteByCharacter("diluc"))

		count, err := repo.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, count, "删除后应只剩其他角色的文档")

		_, err = repo.Get("amber_basic")
		assert.NoError(t, err, "其他角色的文档不应受影响")
	})

	t.Run("删除不存在的角色是空操作", func(t *testing.T) {
		assert.NoError(t, repo.DeleteByCharacter("nonexistent"))
	})
}

func TestMemoryRepositorySearch(t *testing.T) {
	repo := newTestRepository(t, 3)

	docs := []Document{
		{
			ID: "diluc_basic", CharacterID: "diluc", Character: "Diluc",
			Vector:   []float32{1, 0, 0},
			Metadata: map[string]interface{}{"element": "Pyro"},
		},
		{
			ID: "amber_basic", CharacterID: "amber", Character: "Amber",
			Vector:   []float32{0.9, 0.1, 0},
			Metadata: map[string]interface{}{"element": "Pyro"},
		},
		{
			ID: "xingqiu_basic", CharacterID: "xingqiu", Character: "Xingqiu",
			Vector:   []float32{0, 0, 1},
			Metadata: map[string]interface{}{"element": "Hydro"},
		},
	}
	require.NoError(t, repo.AddBatch(docs))

	t.Run("搜索结果按相似度降序", func(t *testing.T) {
		results, err := repo.Search([]float32{1, 0, 0}, DefaultSearchFilter())
		require.NoError(t, err, "搜索不应出错")
		require.Len(t, results, 3)

		assert.Equal(t, "diluc_basic", results[0].Document.ID, "最相似的文档应排在首位")
		assert.Equal(t, "amber_basic", results[1].Document.ID)
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score, "得分应降序排列")
	})

	t.Run("按角色ID过滤", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.CharacterIDs = []string{"xingqiu"}

		results, err := repo.Search([]float32{1, 0, 0}, filter)
		require.NoError(t, err)
		require.Len(t, results, 1, "应只返回指定角色的文档")
		assert.Equal(t, "Xingqiu", results[0].Document.Character)
	})

	t.Run("按元数据过滤", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.Metadata = map[string]interface{}{"element": "Hydro"}

		results, err := repo.Search([]float32{0, 0, 1}, filter)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "xingqiu_basic", results[0].Document.ID)
	})

	t.Run("最大结果数限制", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.MaxResults = 1

		results, err := repo.Search([]float32{1, 0, 0}, filter)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("最小分数过滤", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.MinScore = 0.99

		results, err := repo.Search([]float32{1, 0, 0}, filter)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, res := range results {
			assert.GreaterOrEqual(t, res.Score, float32(0.99))
		}
	})

	t.Run("删除后搜索结果更新", func(t *testing.T) {
		require.NoError(t, repo.DeleteByCharacter("diluc"))

		results, err := repo.Search([]float32{1, 0, 0}, DefaultSearchFilter())
		require.NoError(t, err)
		for _, res := range results {
			assert.NotEqual(t, "diluc_basic", res.Document.ID, "已删除的文档不应出现在结果中")
		}
	})
}

func TestMemoryRepositoryLargeCorpus(t *testing.T) {
	repo := newTestRepository(t, 4)

	// 添加超过并发阈值的文档数量，覆盖并行搜索路径
	docs := make([]Document, 0, 200)
	for i := 0; i < 200; i++ {
		docs = append(docs, Document{
			ID:          fmt.Sprintf("chunk_%d", i),
			CharacterID: fmt.Sprintf("character_%d", i%20),
			Vector:      []float32{float32(i) / 200, 1, 0.5, 0.1},
		})
	}
	require.NoError(t, repo.AddBatch(docs))

	results, err := repo.Search([]float32{0.5, 1, 0.5, 0.1}, SearchFilter{MaxResults: 10})
	require.NoError(t, err, "大语料搜索不应出错")
	assert.Len(t, results, 10, "应返回请求的结果数量")

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "并行搜索结果也应降序排列")
	}
}

func TestDistanceComputation(t *testing.T) {
	t.Run("余弦距离", func(t *testing.T) {
		dist, err := ComputeDistance([]float32{1, 0}, []float32{1, 0}, Cosine)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, dist, 1e-6, "相同向量的余弦距离应为0")

		dist, err = ComputeDistance([]float32{1, 0}, []float32{0, 1}, Cosine)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, dist, 1e-6, "正交向量的余弦距离应为1")
	})

	t.Run("欧几里得距离", func(t *testing.T) {
		dist, err := ComputeDistance([]float32{0, 0}, []float32{3, 4}, Euclidean)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, dist, 1e-6)
	})

	t.Run("维度不匹配", func(t *testing.T) {
		_, err := ComputeDistance([]float32{1}, []float32{1, 2}, Cosine)
		require.Error(t, err, "维度不同的向量应返回错误")
	})

	t.Run("距离转评分", func(t *testing.T) {
		assert.InDelta(t, 1.0, DistanceToScore(0, Cosine), 1e-6, "余弦距离0对应满分")
		assert.InDelta(t, 0.5, DistanceToScore(0.5, Cosine), 1e-6)
		assert.InDelta(t, 1.0, DistanceToScore(0, Euclidean), 1e-6, "欧式距离0对应满分")
	})
}

func TestFilterDocuments(t *testing.T) {
	docs := []Document{
		{ID: "a", CharacterID: "diluc", Metadata: map[string]interface{}{"element": "Pyro"}},
		{ID: "b", CharacterID: "amber", Metadata: map[string]interface{}{"element": "Pyro"}},
		{ID: "c", CharacterID: "xingqiu", Metadata: map[string]interface{}{"element": "Hydro"}},
	}

	t.Run("角色过滤", func(t *testing.T) {
		filtered := FilterDocuments(docs, SearchFilter{CharacterIDs: []string{"diluc", "amber"}})
		assert.Len(t, filtered, 2)
	})

	t.Run("元数据过滤", func(t *testing.T) {
		filtered := FilterDocuments(docs, SearchFilter{
			Metadata: map[string]interface{}{"element": "Hydro"},
		})
		require.Len(t, filtered, 1)
		assert.Equal(t, "c", filtered[0].ID)
	})

	t.Run("无过滤条件返回全部", func(t *testing.T) {
		filtered := FilterDocuments(docs, SearchFilter{})
		assert.Len(t, filtered, 3)
	})
}

func TestRepositoryFactory(t *testing.T) {
	t.Run("未注册类型回退到内存实现", func(t *testing.T) {
		repo, err := NewRepository(Config{Type: "unknown", Dimension: 3})
		require.NoError(t, err)
		defer repo.Close()

		assert.IsType(t, &MemoryRepository{}, repo)
		assert.Equal(t, 3, repo.GetDimension())
	})

	t.Run("维度必须为正", func(t *testing.T) {
		_, err := NewRepository(Config{Type: "memory", Dimension: 0})
		require.Error(t, err, "非法维度应返回错误")
	})
}

func TestVectorCacheExpiry(t *testing.T) {
	c := newVectorCache()
	c.maxResultsAge = 10 * time.Millisecond

	results := []SearchResult{{Score: 0.9}}
	c.addQueryCache("key", results)

	cached, found := c.getQueryCache("key")
	require.True(t, found, "刚写入的缓存应能命中")
	assert.Len(t, cached, 1)

	time.Sleep(20 * time.Millisecond)

	_, found = c.getQueryCache("key")
	assert.False(t, found, "过期的缓存不应命中")
}
