package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskCharacterProcess 单角色处理任务：从快照重新处理并索引一个角色
	TaskCharacterProcess TaskType = "character:process"
	// TaskCorpusReindex 语料库重建任务：从最新快照全量重建
	TaskCorpusReindex TaskType = "corpus:reindex"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	CharacterID string          `json:"character_id"` // 关联的角色ID，重建任务为空
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据，不同任务类型对应不同结构
	Result      json.RawMessage `json:"result"`       // 任务结果数据，不同任务类型对应不同结构
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// CharacterProcessPayload 单角色处理任务载荷
type CharacterProcessPayload struct {
	CharacterName string `json:"character_name"`     // 角色名称，按名称在快照中查找
	Snapshot      string `json:"snapshot,omitempty"` // 使用的快照名，空表示latest
}

// CharacterProcessResult 单角色处理任务结果
type CharacterProcessResult struct {
	CharacterID string `json:"character_id"` // 处理的角色ID
	Chunks      int    `json:"chunks"`       // 生成的切块数
	Indexed     int    `json:"indexed"`      // 写入向量库的切块数
	Error       string `json:"error,omitempty"`
}

// CorpusReindexPayload 语料库重建任务载荷
type CorpusReindexPayload struct {
	Snapshot string `json:"snapshot,omitempty"` // 使用的快照名，空表示latest
}

// CorpusReindexResult 语料库重建任务结果
type CorpusReindexResult struct {
	Characters int      `json:"characters"` // 处理成功的角色数
	Chunks     int      `json:"chunks"`     // 生成的切块数
	Indexed    int      `json:"indexed"`    // 写入向量库的切块数
	Failed     []string `json:"failed,omitempty"`
	Snapshot   string   `json:"snapshot"` // 实际使用的快照名
	Error      string   `json:"error,omitempty"`
}
