package model

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为20，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// QARequest 问答请求
type QARequest struct {
	Question  string                 `json:"question" binding:"required"`  // 问题内容
	Character string                 `json:"character" binding:"omitempty"` // 可选的角色名，限定检索范围
	Metadata  map[string]interface{} `json:"metadata" binding:"omitempty"` // 可选的元数据过滤，如{"element":"Pyro"}
}

// CharacterListRequest 角色列表请求
type CharacterListRequest struct {
	PaginationRequest
	Element string `form:"element" json:"element" binding:"omitempty,genshinelement"` // 按元素过滤
	Weapon  string `form:"weapon" json:"weapon" binding:"omitempty,genshinweapon"`    // 按武器过滤
	Region  string `form:"region" json:"region" binding:"omitempty"`                  // 按地区过滤
	Rarity  int    `form:"rarity" json:"rarity" binding:"omitempty,oneof=4 5"`        // 按稀有度过滤
	Name    string `form:"name" json:"name" binding:"omitempty"`                      // 按名称模糊搜索
}

// Filters 转换为仓储层的过滤条件
// 元素和武器归一化为规范大小写，数据库比较是大小写敏感的
func (r *CharacterListRequest) Filters() map[string]interface{} {
	filters := make(map[string]interface{})
	if r.Element != "" {
		filters["element"] = CanonicalOption(r.Element, validElements)
	}
	if r.Weapon != "" {
		filters["weapon"] = CanonicalOption(r.Weapon, validWeapons)
	}
	if r.Region != "" {
		filters["region"] = r.Region
	}
	if r.Rarity > 0 {
		filters["rarity"] = r.Rarity
	}
	if r.Name != "" {
		filters["name"] = r.Name
	}
	return filters
}

// CharacterDetailRequest 角色详情请求
type CharacterDetailRequest struct {
	Name string `uri:"name" binding:"required"` // 角色名称或角色ID
}

// CorpusRebuildRequest 语料库重建请求
type CorpusRebuildRequest struct {
	Snapshot string `json:"snapshot" binding:"omitempty"` // 指定快照名，空表示latest
}
