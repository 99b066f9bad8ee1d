package models

// DataRequest describes one page of table data to fetch
type DataRequest struct {
	Table    string            `json:"table"`
	Page     int               `json:"page"`
	PerPage  int               `json:"per_page"`
	Search   string            `json:"search"`    // Already sanitized
	OrderBy  string            `json:"order_by"`  // Checked against known columns by the engine
	OrderDir string            `json:"order_dir"` // asc or desc
	Filters  map[string]string `json:"filters"`   // column -> exact value
}

// Offset returns the number of rows to skip for the requested page
func (r DataRequest) Offset() int {
	if r.Page < 1 {
		return 0
	}
	return (r.Page - 1) * r.PerPage
}

// DataPage is one page of table data
type DataPage struct {
	Columns    []ColumnDescriptor `json:"columns"`
	Rows       []map[string]any   `json:"rows"`
	Pagination Pagination         `json:"pagination"`
}

// Pagination carries the page bookkeeping returned with table data
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	LastPage    int   `json:"last_page"`
}

// NewPagination computes page bookkeeping for a total row count
func NewPagination(total int64, page, perPage int) Pagination {
	if perPage < 1 {
		perPage = 1
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	if last < 1 {
		last = 1
	}
	return Pagination{
		Total:       total,
		CurrentPage: page,
		PerPage:     perPage,
		LastPage:    last,
	}
}

// RowMutation carries a row write against a table
type RowMutation struct {
	Table      string         `json:"table"`
	PrimaryKey map[string]any `json:"primary_key"`
	Data       map[string]any `json:"data"`
}
