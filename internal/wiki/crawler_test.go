package wiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWikiServer 构造一个提供列表页和角色页的测试站点
func newWikiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wiki/Character/List", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
<table class="sortable">
  <tr><th>Name</th></tr>
  <tr><td><a href="/wiki/Diluc" title="Diluc">Diluc</a></td></tr>
  <tr><td><a href="/wiki/Jean" title="Jean">Jean</a></td></tr>
  <tr><td><a href="/wiki/Broken" title="Broken">Broken</a></td></tr>
</table>`))
	})
	page := func(name string) string {
		return `<h1 class="page-header__title">` + name + `</h1>
<div class="mw-parser-output"><p>` + name + ` is a playable character in Genshin Impact with a long introduction.</p></div>`
	}
	mux.HandleFunc("/wiki/Diluc", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page("Diluc")))
	})
	mux.HandleFunc("/wiki/Jean", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page("Jean")))
	})
	mux.HandleFunc("/wiki/Broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

// TestCrawlCharacters 测试批量爬取
func TestCrawlCharacters(t *testing.T) {
	server := newWikiServer(t)
	defer server.Close()

	crawler := NewCrawler(
		WithBaseURL(server.URL),
		WithDelay(0),
		WithConcurrency(2),
	)

	result, err := crawler.CrawlCharacters(context.Background())
	require.NoError(t, err)

	t.Run("order follows the list page", func(t *testing.T) {
		require.Len(t, result.Characters, 2)
		assert.Equal(t, "Diluc", result.Characters[0].Name)
		assert.Equal(t, "Jean", result.Characters[1].Name)
	})

	t.Run("failed pages reported by name", func(t *testing.T) {
		assert.Equal(t, []string{"Broken"}, result.Failed)
	})
}

// TestFetchCharacter 测试单页抓取
func TestFetchCharacter(t *testing.T) {
	server := newWikiServer(t)
	defer server.Close()

	crawler := NewCrawler(WithBaseURL(server.URL), WithDelay(0))

	t.Run("page parsed", func(t *testing.T) {
		raw, err := crawler.FetchCharacter(context.Background(), server.URL+"/wiki/Diluc")
		require.NoError(t, err)
		assert.Equal(t, "Diluc", raw.Name)
		assert.Contains(t, raw.Introduction, "playable character")
	})

	t.Run("http error surfaces", func(t *testing.T) {
		_, err := crawler.FetchCharacter(context.Background(), server.URL+"/wiki/Broken")
		assert.Error(t, err)
	})

	t.Run("context cancellation stops fetch", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		_, err := crawler.FetchCharacter(ctx, server.URL+"/wiki/Diluc")
		assert.Error(t, err)
	})
}

// TestMaxCharacters 测试数量限制
func TestMaxCharacters(t *testing.T) {
	server := newWikiServer(t)
	defer server.Close()

	crawler := NewCrawler(
		WithBaseURL(server.URL),
		WithDelay(0),
		WithMaxCharacters(1),
	)

	result, err := crawler.CrawlCharacters(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Characters, 1)
	assert.Equal(t, "Diluc", result.Characters[0].Name)
	assert.True(t, strings.HasPrefix(result.Characters[0].URL, server.URL))
}
