package embedding

// DashScopeRequest DashScope嵌入API请求结构
type DashScopeRequest struct {
	Model      string                `json:"model"`                // 模型名称
	Input      DashScopeRequestInput `json:"input"`                // 输入文本
	Parameters *DashScopeParameters  `json:"parameters,omitempty"` // 模型参数
}

// DashScopeRequestInput 请求中的文本列表
type DashScopeRequestInput struct {
	Texts []string `json:"texts"`
}

// DashScopeParameters 模型参数，仅v3模型支持自定义维度
type DashScopeParameters struct {
	Dimension  int    `json:"dimension,omitempty"`
	OutputType string `json:"output_type,omitempty"`
}

// DashScopeResponse DashScope嵌入API响应结构
type DashScopeResponse struct {
	StatusCode int             `json:"status_code,omitempty"` // 部分错误响应会带HTTP状态码
	RequestID  string          `json:"request_id"`            // 请求ID
	Code       string          `json:"code,omitempty"`        // 错误码
	Message    string          `json:"message,omitempty"`     // 错误消息
	Output     DashScopeOutput `json:"output"`                // 输出结果
	Usage      DashScopeUsage  `json:"usage"`                 // 资源使用情况
}

// DashScopeOutput 嵌入输出结果
type DashScopeOutput struct {
	Embeddings []DashScopeEmbedding `json:"embeddings"`
}

// DashScopeEmbedding 单条文本的嵌入结果，带原始文本索引
type DashScopeEmbedding struct {
	Embedding []float32 `json:"embedding"`
	TextIndex int       `json:"text_index"`
}

// DashScopeUsage 资源使用情况
type DashScopeUsage struct {
	TotalTokens int `json:"total_tokens"` // 使用的总token数
}
