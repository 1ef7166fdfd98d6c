package audit

// Page represents a paginated response with data and metadata
type Page struct {
	Data       []*AnalysisRecord `json:"data"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	Total      int64             `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
}

// NewPage fills the metadata; data is never nil.
func NewPage(data []*AnalysisRecord, page, pageSize int, total int64) Page {
	if data == nil {
		data = []*AnalysisRecord{}
	}
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Page{Data: data, Page: page, PageSize: pageSize, Total: total, TotalPages: pages}
}
