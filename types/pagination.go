package types

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a 1-indexed page request.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number and size into a usable page request.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	p = NewPage(p.Number, p.Size)
	return (p.Number - 1) * p.Size
}

// Limit returns the number of rows to fetch.
func (p Page) Limit() int {
	return NewPage(p.Number, p.Size).Size
}

// Paginated is the list envelope returned by every listing endpoint.
type Paginated[T any] struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	TotalItem int `json:"totalItem"`
	TotalPage int `json:"totalPage"`
	Items     []T `json:"items"`
}

// NewPaginated builds the envelope for one page of items out of total.
func NewPaginated[T any](page Page, items []T, total int) Paginated[T] {
	page = NewPage(page.Number, page.Size)
	if items == nil {
		items = []T{}
	}
	totalPage := 0
	if total > 0 {
		totalPage = (total + page.Size - 1) / page.Size
	}
	return Paginated[T]{
		Page:      page.Number,
		PageSize:  page.Size,
		TotalItem: total,
		TotalPage: totalPage,
		Items:     items,
	}
}

// EmptyPage returns an envelope with no items.
func EmptyPage[T any](page Page) Paginated[T] {
	return NewPaginated[T](page, nil, 0)
}
