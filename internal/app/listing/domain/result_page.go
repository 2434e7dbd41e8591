package domain

// ResultPage is one fetched batch of records plus pagination metadata.
type ResultPage struct {
	Records    []Record
	TotalPages int
}

// NewResultPage builds a page, normalizing TotalPages to at least 1.
func NewResultPage(records []Record, totalPages int) *ResultPage {
	if totalPages < 1 {
		totalPages = 1
	}
	return &ResultPage{Records: records, TotalPages: totalPages}
}

// TotalPagesFor returns the number of pages needed for total items at pageSize per page.
// An empty collection still has one (empty) page.
func TotalPagesFor(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// IndexOf returns the position of the record with the given id, or -1.
func (p *ResultPage) IndexOf(id string) int {
	for i, r := range p.Records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
