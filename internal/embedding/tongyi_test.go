package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeDashScopeServer 创建一个模拟DashScope嵌入API的测试服务器
// 每条文本返回一个固定维度的向量，首元素为文本索引
func newFakeDashScopeServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method, "请求方法应为POST")
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ", "应携带Bearer认证头")

		var req DashScopeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req), "请求体应为合法JSON")

		embeddings := make([]DashScopeEmbedding, len(req.Input.Texts))
		for i := range req.Input.Texts {
			vec := make([]float32, dim)
			vec[0] = float32(i)
			embeddings[i] = DashScopeEmbedding{
				Embedding: vec,
				TextIndex: i,
			}
		}

		resp := DashScopeResponse{
			RequestID: "test-request",
			Output:    DashScopeOutput{Embeddings: embeddings},
			Usage:     DashScopeUsage{TotalTokens: len(req.Input.Texts) * 10},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestNewTongyiClient(t *testing.T) {
	t.Run("缺少API密钥应失败", func(t *testing.T) {
		_, err := NewTongyiClient()
		require.Error(t, err, "缺少API密钥时应返回错误")

		embErr, ok := err.(EmbeddingError)
		require.True(t, ok, "错误类型应为EmbeddingError")
		assert.Equal(t, ErrCodeInvalidAPIKey, embErr.Code)
	})

	t.Run("使用默认配置创建客户端", func(t *testing.T) {
		client, err := NewTongyiClient(WithAPIKey("test-key"))
		require.NoError(t, err, "创建客户端不应出错")
		assert.Equal(t, defaultModel, client.Name(), "默认模型名称应匹配")
	})

	t.Run("通过工厂创建客户端", func(t *testing.T) {
		client, err := NewClient("tongyi", WithAPIKey("test-key"), WithModel("text-embedding-v3"))
		require.NoError(t, err, "工厂创建不应出错")
		assert.Equal(t, "text-embedding-v3", client.Name())
	})

	t.Run("未注册的客户端类型应失败", func(t *testing.T) {
		_, err := NewClient("nonexistent")
		require.Error(t, err, "未注册的类型应返回错误")
		assert.Contains(t, err.Error(), "not registered")
	})
}

func TestTongyiEmbed(t *testing.T) {
	server := newFakeDashScopeServer(t, 4)
	defer server.Close()

	client, err := NewTongyiClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	require.NoError(t, err)

	t.Run("单条文本向量化", func(t *testing.T) {
		vec, err := client.Embed(context.Background(), "Diluc is a Pyro character.")
		require.NoError(t, err, "向量化不应出错")
		assert.Len(t, vec, 4, "向量维度应为4")
	})

	t.Run("空文本应被拒绝", func(t *testing.T) {
		_, err := client.Embed(context.Background(), "")
		require.Error(t, err, "空文本应返回错误")

		embErr, ok := err.(EmbeddingError)
		require.True(t, ok)
		assert.Equal(t, ErrCodeEmptyInput, embErr.Code)
	})
}

func TestTongyiEmbedBatch(t *testing.T) {
	server := newFakeDashScopeServer(t, 4)
	defer server.Close()

	client, err := NewTongyiClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	require.NoError(t, err)

	t.Run("批量结果保持输入顺序", func(t *testing.T) {
		texts := []string{"first", "second", "third"}
		vectors, err := client.EmbedBatch(context.Background(), texts)
		require.NoError(t, err, "批量向量化不应出错")
		require.Len(t, vectors, 3, "应返回与输入等量的向量")

		for i, vec := range vectors {
			assert.Equal(t, float32(i), vec[0], "向量应按原始文本索引排列")
		}
	})

	t.Run("空输入返回空结果", func(t *testing.T) {
		vectors, err := client.EmbedBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
	})

	t.Run("超出批量上限应失败", func(t *testing.T) {
		texts := make([]string, 26)
		for i := range texts {
			texts[i] = "text"
		}

		_, err := client.EmbedBatch(context.Background(), texts)
		require.Error(t, err, "v1/v2模型超过25条文本应返回错误")
	})

	t.Run("v3模型批量上限为10", func(t *testing.T) {
		v3Client, err := NewTongyiClient(
			WithAPIKey("test-key"),
			WithBaseURL(server.URL),
			WithModel("text-embedding-v3"),
		)
		require.NoError(t, err)

		texts := make([]string, 11)
		for i := range texts {
			texts[i] = "text"
		}

		_, err = v3Client.EmbedBatch(context.Background(), texts)
		require.Error(t, err, "v3模型超过10条文本应返回错误")
	})
}

func TestTongyiRetry(t *testing.T) {
	t.Run("服务端错误触发重试", func(t *testing.T) {
		var calls int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&calls, 1)
			if n < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			resp := DashScopeResponse{
				RequestID: "retry-request",
				Output: DashScopeOutput{
					Embeddings: []DashScopeEmbedding{
						{Embedding: []float32{1, 2, 3}, TextIndex: 0},
					},
				},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client, err := NewTongyiClient(
			WithAPIKey("test-key"),
			WithBaseURL(server.URL),
			WithMaxRetries(3),
		)
		require.NoError(t, err)

		vec, err := client.Embed(context.Background(), "retry me")
		require.NoError(t, err, "重试成功后不应出错")
		assert.Equal(t, []float32{1, 2, 3}, vec)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "应在第三次请求时成功")
	})

	t.Run("客户端错误不重试", func(t *testing.T) {
		var calls int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"invalid api key"}`))
		}))
		defer server.Close()

		client, err := NewTongyiClient(
			WithAPIKey("bad-key"),
			WithBaseURL(server.URL),
			WithMaxRetries(3),
		)
		require.NoError(t, err)

		_, err = client.Embed(context.Background(), "some text")
		require.Error(t, err, "认证失败应返回错误")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx错误不应触发重试")
	})
}

func TestTongyiTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewTongyiClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithMaxRetries(0),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Embed(ctx, "slow request")
	require.Error(t, err, "超时应返回错误")
}
