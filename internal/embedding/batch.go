package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"
	"github.com/yumiao07/genshin-QA-system/internal/processor"
)

// BatchProcessor 批量向量化处理接口
type BatchProcessor interface {
	// ProcessTexts 批量处理文本，结果按输入顺序排列
	ProcessTexts(ctx context.Context, texts []string) ([][]float32, error)

	// ProcessChunks 批量处理角色文本块，返回块ID到向量的映射
	ProcessChunks(ctx context.Context, chunks []processor.Chunk) (map[string][]float32, error)
}

// DefaultBatchProcessor 默认的批处理实现
type DefaultBatchProcessor struct {
	client     Client         // 嵌入客户端
	batchSize  int            // 每批文本数量
	maxWorkers int            // 最大并发数
	logger     *logrus.Logger // 日志记录器
}

// BatchOption 批处理配置选项
type BatchOption func(*DefaultBatchProcessor)

// WithBatchSize 设置批处理大小
func WithBatchProcessorSize(size int) BatchOption {
	return func(p *DefaultBatchProcessor) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

// WithBatchWorkers 设置并发工作协程数
func WithBatchWorkers(workers int) BatchOption {
	return func(p *DefaultBatchProcessor) {
		if workers > 0 {
			p.maxWorkers = workers
		}
	}
}

// WithBatchLogger 设置日志记录器
func WithBatchLogger(logger *logrus.Logger) BatchOption {
	return func(p *DefaultBatchProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewBatchProcessor 创建新的批处理器
func NewBatchProcessor(client Client, opts ...BatchOption) *DefaultBatchProcessor {
	p := &DefaultBatchProcessor{
		client:     client,
		batchSize:  10,
		maxWorkers: 4,
		logger:     logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ProcessTexts 并发批量处理文本向量化
// 空文本会在结果中保留nil占位，保持索引对齐
func (p *DefaultBatchProcessor) ProcessTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	// 过滤空文本，记录原始索引
	validTexts := make([]string, 0, len(texts))
	validIndices := make([]int, 0, len(texts))
	for i, text := range texts {
		if text != "" {
			validTexts = append(validTexts, text)
			validIndices = append(validIndices, i)
		}
	}

	if len(validTexts) == 0 {
		return make([][]float32, len(texts)), nil
	}

	batches := splitIntoBatches(validTexts, p.batchSize)

	type batchResult struct {
		startIndex int
		vectors    [][]float32
		err        error
	}

	results := make([]batchResult, len(batches))
	wp := workerpool.New(p.maxWorkers)
	var mu sync.Mutex

	offset := 0
	for i, batch := range batches {
		batchIdx := i
		batchTexts := batch
		startIdx := offset
		offset += len(batch)

		wp.Submit(func() {
			vectors, err := p.client.EmbedBatch(ctx, batchTexts)
			mu.Lock()
			results[batchIdx] = batchResult{
				startIndex: startIdx,
				vectors:    vectors,
				err:        err,
			}
			mu.Unlock()
		})
	}

	wp.StopWait()

	// 按原始索引回填结果
	final := make([][]float32, len(texts))
	for _, res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("batch embedding failed: %w", res.err)
		}
		for j, vec := range res.vectors {
			origIdx := validIndices[res.startIndex+j]
			final[origIdx] = vec
		}
	}

	p.logger.WithFields(logrus.Fields{
		"total":   len(texts),
		"batches": len(batches),
	}).Debug("batch embedding completed")

	return final, nil
}

// ProcessChunks 向量化角色文本块，返回块ID到向量的映射
// 内容为空的块会被跳过
func (p *DefaultBatchProcessor) ProcessChunks(ctx context.Context, chunks []processor.Chunk) (map[string][]float32, error) {
	if len(chunks) == 0 {
		return map[string][]float32{}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := p.ProcessTexts(ctx, texts)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]float32, len(chunks))
	for i, chunk := range chunks {
		if vectors[i] != nil {
			result[chunk.ID] = vectors[i]
		}
	}

	return result, nil
}

// splitIntoBatches 将文本切分为固定大小的批次
func splitIntoBatches(texts []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = 10
	}

	var batches [][]string
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}

	return batches
}
