package models

// PageRequest is the zero-based paging input shared by every list endpoint.
type PageRequest struct {
	Page      int
	Size      int
	SortBy    string
	Direction string
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps paging values and falls back to defaults.
func (p PageRequest) Normalize(defaultSort string, allowedSorts ...string) PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	sortOK := false
	for _, s := range allowedSorts {
		if p.SortBy == s {
			sortOK = true
			break
		}
	}
	if !sortOK {
		p.SortBy = defaultSort
	}
	if p.Direction != "desc" {
		p.Direction = "asc"
	}
	return p
}

func (p PageRequest) Offset() int { return p.Page * p.Size }

type Page[T any] struct {
	Content       []T    `json:"content"`
	TotalElements int64  `json:"totalElements"`
	TotalPages    int    `json:"totalPages"`
	PageNumber    int    `json:"pageNumber"`
	PageSize      int    `json:"pageSize"`
	First         bool   `json:"first"`
	Last          bool   `json:"last"`
	Empty         bool   `json:"empty"`
	SortBy        string `json:"sortBy"`
	Direction     string `json:"direction"`
}

func NewPage[T any](content []T, total int64, req PageRequest) Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    pages,
		PageNumber:    req.Page,
		PageSize:      req.Size,
		First:         req.Page == 0,
		Last:          req.Page >= pages-1,
		Empty:         len(content) == 0,
		SortBy:        req.SortBy,
		Direction:     req.Direction,
	}
}
