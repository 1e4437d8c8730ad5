package pagination

const (
	DefaultPageSize = 20
	MaxPageSize     = 250
)

// Page is a 1-based offset page request.
type Page struct {
	Page     int `form:"page,default=1" json:"page" validate:"gte=1"`
	PageSize int `form:"page_size,default=20" json:"page_size" validate:"gte=1,lte=250"`
}

type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	HasMore    bool  `json:"has_more"`
}

// Normalize clamps out-of-range values to defaults.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PageSize
}

// Slice returns the page window of items and its PageInfo.
func Slice[T any](items []T, p Page) ([]T, PageInfo) {
	p = p.Normalize()
	total := len(items)
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.PageSize
	if end > total {
		end = total
	}
	return items[start:end], PageInfo{
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalCount: int64(total),
		HasMore:    end < total,
	}
}
