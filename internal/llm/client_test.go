package llm

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

// newFakeTongyiServer 创建模拟通义千问生成API的测试服务器
func newFakeTongyiServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")

		var req TongyiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Input)
		require.NotEmpty(t, req.Input.Messages, "请求应包含消息")

		resp := TongyiResponse{
			RequestID: "test-request",
			Output: TongyiOutput{
				Choices: []TongyiChoice{
					{
						FinishReason: "stop",
						Message:      Message{Role: RoleAssistant, Content: answer},
					},
				},
			},
			Usage: TongyiUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestNewTongyiClient(t *testing.T) {
	t.Run("缺少API密钥应失败", func(t *testing.T) {
		_, err := NewTongyiClient()
		require.Error(t, err)

		llmErr, ok := err.(LLMError)
		require.True(t, ok, "错误类型应为LLMError")
		assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
	})

	t.Run("默认模型", func(t *testing.T) {
		client, err := NewTongyiClient(WithAPIKey("test-key"))
		require.NoError(t, err)
		assert.Equal(t, ModelQwenTurbo, client.Name())
	})

	t.Run("通过工厂创建", func(t *testing.T) {
		client, err := NewClient("tongyi", WithAPIKey("test-key"), WithModel(ModelQwenMax))
		require.NoError(t, err)
		assert.Equal(t, ModelQwenMax, client.Name())
	})

	t.Run("未注册类型应失败", func(t *testing.T) {
		_, err := NewClient("nonexistent")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not registered")
	})
}

func TestTongyiGenerate(t *testing.T) {
	server := newFakeTongyiServer(t, "Diluc is a Pyro character.")
	defer server.Close()

	client, err := NewTongyiClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	require.NoError(t, err)

	t.Run("生成回答", func(t *testing.T) {
		resp, err := client.Generate(context.Background(), "Who is Diluc?")
		require.NoError(t, err, "生成不应出错")

		assert.Equal(t, "Diluc is a Pyro character.", resp.Text)
		assert.Equal(t, 30, resp.TokenCount)
		assert.Equal(t, ModelQwenTurbo, resp.ModelName)
	})

	t.Run("空提示词应被拒绝", func(t *testing.T) {
		_, err := client.Generate(context.Background(), "")
		require.Error(t, err)

		llmErr, ok := err.(LLMError)
		require.True(t, ok)
		assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)
	})
}

func TestTongyiChat(t *testing.T) {
	server := newFakeTongyiServer(t, "Hu Tao is the 77th Director of the Wangsheng Funeral Parlor.")
	defer server.Close()

	client, err := NewTongyiClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	require.NoError(t, err)

	t.Run("多轮对话", func(t *testing.T) {
		messages := []Message{
			{Role: RoleSystem, Content: SystemMessage},
			{Role: RoleUser, Content: "Who is Hu Tao?"},
		}

		resp, err := client.Chat(context.Background(), messages)
		require.NoError(t, err, "对话不应出错")

		assert.Contains(t, resp.Text, "Hu Tao")
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, RoleAssistant, resp.Messages[0].Role)
	})

	t.Run("空消息列表应被拒绝", func(t *testing.T) {
		_, err := client.Chat(context.Background(), nil)
		require.Error(t, err)
	})
}

func TestTongyiErrorResponses(t *testing.T) {
	t.Run("API业务错误", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := TongyiResponse{
				RequestID: "err-request",
				Code:      "InvalidParameter",
				Message:   "model not supported",
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client, err := NewTongyiClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
		require.NoError(t, err)

		_, err = client.Generate(context.Background(), "prompt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "InvalidParameter")
	})

	t.Run("服务端错误触发重试", func(t *testing.T) {
		var calls int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			resp := TongyiResponse{
				RequestID: "retry-request",
				Output: TongyiOutput{
					Choices: []TongyiChoice{
						{FinishReason: "stop", Message: Message{Role: RoleAssistant, Content: "ok"}},
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
			WithMaxRetries(2),
		)
		require.NoError(t, err)

		resp, err := client.Generate(context.Background(), "prompt")
		require.NoError(t, err, "重试成功后不应出错")
		assert.Equal(t, "ok", resp.Text)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("超时", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
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

		_, err = client.Generate(ctx, "slow prompt")
		require.Error(t, err, "超时应返回错误")
	})
}
