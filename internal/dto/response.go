package dto

// ── 变更日志分页 ──

// 变更日志分页默认值
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationRequest 分页参数；HTTP 层由 binding 校验，服务层直接调用时按默认值与上限修正
// nil 视为第一页、默认页大小
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 页码，未指定或非法时为 1
func (p *PaginationRequest) GetPage() int {
	if p == nil || p.Page < DefaultPage {
		return DefaultPage
	}
	return p.Page
}

// GetPageSize 每页条数，未指定时 20，超过上限时截断为 100
func (p *PaginationRequest) GetPageSize() int {
	switch {
	case p == nil || p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	}
	return p.PageSize
}

// GetOffset 偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
