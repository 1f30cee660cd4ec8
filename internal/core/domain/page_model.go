package domain

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page selects a window of a list, numbered from 1.
type Page struct {
	Number int
	Size   int
}

func NewPage(pageNumber, pageSize int) Page {
	pNumber := 1
	if pageNumber > 0 {
		pNumber = pageNumber
	}

	pSize := defaultPageSize
	if pageSize > 0 {
		pSize = pageSize
	}
	if pSize > maxPageSize {
		pSize = maxPageSize
	}

	return Page{
		Number: pNumber,
		Size:   pSize,
	}
}

// Offset returns the number of items preceding the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}
