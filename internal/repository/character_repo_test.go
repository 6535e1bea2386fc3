package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yumiao07/genshin-QA-system/internal/database"
	"github.com/yumiao07/genshin-QA-system/internal/models"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	// 运行迁移以创建所需的表
	err = db.AutoMigrate(&models.Character{}, &models.CharacterChunk{}, &models.CrawlRecord{})
	require.NoError(t, err, "Failed to run migrations")

	// 保存原始全局DB引用
	originalDB := database.DB
	database.DB = db

	cleanup := func() {
		database.DB = originalDB
	}

	return db, cleanup
}

func testCharacterModel(id, name string) *models.Character {
	return &models.Character{
		ID:          id,
		Name:        name,
		Element:     "Pyro",
		Weapon:      "Claymore",
		Rarity:      5,
		Region:      "Mondstadt",
		RoleSummary: "DPS",
		HowToObtain: datatypes.JSON([]byte(`["Wishes"]`)),
		FullText:    "# " + name,
	}
}

func TestCharacterRepository_Upsert(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCharacterRepository()

	t.Run("create new character", func(t *testing.T) {
		err := repo.Upsert(testCharacterModel("diluc", "Diluc"))
		require.NoError(t, err)

		got, err := repo.GetByID("diluc")
		require.NoError(t, err)
		assert.Equal(t, "Diluc", got.Name)
		assert.False(t, got.CreatedAt.IsZero(), "创建时间应由钩子自动填充")
	})

	t.Run("upsert overwrites existing record", func(t *testing.T) {
		character := testCharacterModel("diluc", "Diluc")
		character.Element = "Hydro"
		require.NoError(t, repo.Upsert(character))

		got, err := repo.GetByID("diluc")
		require.NoError(t, err)
		assert.Equal(t, "Hydro", got.Element)

		count, err := repo.CountCharacters()
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		err := repo.Upsert(&models.Character{Name: "Nameless"})
		assert.Error(t, err)
	})
}

func TestCharacterRepository_Queries(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCharacterRepository()
	require.NoError(t, repo.Upsert(testCharacterModel("diluc", "Diluc")))

	amber := testCharacterModel("amber", "Amber")
	amber.Rarity = 4
	amber.Weapon = "Bow"
	require.NoError(t, repo.Upsert(amber))

	t.Run("get by name case insensitive", func(t *testing.T) {
		got, err := repo.GetByName("DILUC")
		require.NoError(t, err)
		assert.Equal(t, "diluc", got.ID)
	})

	t.Run("not found error", func(t *testing.T) {
		_, err := repo.GetByName("Paimon")
		assert.ErrorIs(t, err, models.ErrCharacterNotFound)
	})

	t.Run("list with filters", func(t *testing.T) {
		characters, total, err := repo.List(0, 10, map[string]interface{}{"rarity": 5})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, characters, 1)
		assert.Equal(t, "Diluc", characters[0].Name)
	})

	t.Run("list ordered by name", func(t *testing.T) {
		characters, total, err := repo.List(0, 10, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		require.Len(t, characters, 2)
		assert.Equal(t, "Amber", characters[0].Name)
		assert.Equal(t, "Diluc", characters[1].Name)
	})

	t.Run("name fuzzy filter", func(t *testing.T) {
		characters, _, err := repo.List(0, 10, map[string]interface{}{"name": "amb"})
		require.NoError(t, err)
		require.Len(t, characters, 1)
		assert.Equal(t, "Amber", characters[0].Name)
	})
}

func TestCharacterRepository_Chunks(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCharacterRepository()
	require.NoError(t, repo.Upsert(testCharacterModel("diluc", "Diluc")))

	chunks := []*models.CharacterChunk{
		{CharacterID: "diluc", ChunkID: "diluc_basic", ChunkType: "basic_info", Content: "basic"},
		{CharacterID: "diluc", ChunkID: "diluc_description", ChunkType: "description", Content: "desc"},
	}

	t.Run("save and fetch chunks", func(t *testing.T) {
		require.NoError(t, repo.SaveChunks(chunks))

		got, err := repo.GetChunks("diluc")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "diluc_basic", got[0].ChunkID)
	})

	t.Run("duplicate chunk id overwrites", func(t *testing.T) {
		update := []*models.CharacterChunk{
			{CharacterID: "diluc", ChunkID: "diluc_basic", ChunkType: "basic_info", Content: "updated"},
		}
		require.NoError(t, repo.SaveChunks(update))

		got, err := repo.GetChunks("diluc")
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("delete character removes chunks", func(t *testing.T) {
		require.NoError(t, repo.Delete("diluc"))

		got, err := repo.GetChunks("diluc")
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = repo.GetByID("diluc")
		assert.Error(t, err)
	})
}

func TestCharacterRepository_CrawlRecords(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCharacterRepository()

	t.Run("no records yet", func(t *testing.T) {
		record, err := repo.LatestCrawlRecord()
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("create and update", func(t *testing.T) {
		record := &models.CrawlRecord{Status: models.CrawlStatusRunning, Total: 90}
		require.NoError(t, repo.CreateCrawlRecord(record))
		require.NotZero(t, record.ID)

		now := time.Now()
		record.Status = models.CrawlStatusCompleted
		record.Succeeded = 88
		record.Failed = 2
		record.EndedAt = &now
		require.NoError(t, repo.UpdateCrawlRecord(record))

		latest, err := repo.LatestCrawlRecord()
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, models.CrawlStatusCompleted, latest.Status)
		assert.Equal(t, 88, latest.Succeeded)
	})
}
