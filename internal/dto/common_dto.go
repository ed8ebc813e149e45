package dto

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Paging limits shared by list endpoints.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// PageQuery is the skip/limit window accepted by list endpoints.
type PageQuery struct {
	Skip  int `query:"skip" validate:"gte=0"`
	Limit int `query:"limit" validate:"gte=0,lte=1000"`
}

// Normalize applies defaults to an unset limit.
func (p PageQuery) Normalize() PageQuery {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// ListMeta describes the window of a list response.
type ListMeta struct {
	Skip  int   `json:"skip"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// ListResponse wraps paginated items.
type ListResponse[T any] struct {
	Items []T      `json:"items"`
	Meta  ListMeta `json:"meta"`
}

// NewListResponse builds a list envelope, never returning a nil item slice.
func NewListResponse[T any](items []T, page PageQuery, total int64) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{
		Items: items,
		Meta:  ListMeta{Skip: page.Skip, Limit: page.Limit, Total: total},
	}
}

func rawJSON(data datatypes.JSON) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(data)
}
