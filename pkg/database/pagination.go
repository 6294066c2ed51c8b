package database

import (
	"math"
	"strconv"
	"strings"
)

// DefaultPageSize 未指定 size 時的預設值
const DefaultPageSize int64 = 5

// PageRequest 分頁參數，All 表示不分頁
type PageRequest struct {
	All  bool
	Page int64
	Size int64
}

// ParsePageRequest 解析 query string，page 空值或 "all" 表示全部
func ParsePageRequest(page, size string) PageRequest {
	page = strings.TrimSpace(page)
	if page == "" || strings.EqualFold(page, "all") {
		return PageRequest{All: true}
	}

	req := PageRequest{Page: 1, Size: DefaultPageSize}
	if p, err := strconv.ParseInt(page, 10, 64); err == nil {
		req.Page = p
	}
	if s, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64); err == nil {
		req.Size = s
	}
	return req.Normalize()
}

// Normalize page >= 1, size >= 1
func (p PageRequest) Normalize() PageRequest {
	if p.All {
		return p
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = 1
	}
	return p
}

// Skip (page-1)*size
func (p PageRequest) Skip() int64 {
	p = p.Normalize()
	return (p.Page - 1) * p.Size
}

// Paginated 分頁回傳格式，count/limit/pages 只有 page=all 時省略
type Paginated[T any] struct {
	Count       *int64      `json:"count,omitempty" bson:"count,omitempty"`
	Limit       *int64      `json:"limit,omitempty" bson:"limit,omitempty"`
	Pages       *int64      `json:"pages,omitempty" bson:"pages,omitempty"`
	CurrentPage interface{} `json:"currentPage" bson:"currentPage"`
	Result      []T         `json:"result" bson:"result"`
}

// NewPaginated build the envelope; count is ignored when page.All
func NewPaginated[T any](result []T, count int64, page PageRequest) *Paginated[T] {
	if result == nil {
		result = []T{}
	}
	if page.All {
		return &Paginated[T]{CurrentPage: "all", Result: result}
	}

	page = page.Normalize()
	pages := int64(math.Ceil(float64(count) / float64(page.Size)))
	return &Paginated[T]{
		Count:       &count,
		Limit:       &page.Size,
		Pages:       &pages,
		CurrentPage: page.Page,
		Result:      result,
	}
}
