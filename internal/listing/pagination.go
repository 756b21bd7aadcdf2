package listing

import "strconv"

// maxPageLinks is the widest numbered window rendered without ellipsis.
const maxPageLinks = 7

// Page is one slice of a filtered collection plus its metadata.
type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int
	TotalPages int
	// StartIndex and EndIndex delimit Items within the full collection,
	// half-open: [StartIndex, EndIndex).
	StartIndex int
	EndIndex   int
}

// Paginate slices items for the requested page. TotalPages is at least one
// so an empty collection still renders a single (empty) page, and page is
// clamped into [1, TotalPages].
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return Page[T]{
		Items:      items[start:end],
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		StartIndex: start,
		EndIndex:   end,
	}
}

// PageLink is one entry of the numbered window. Ellipsis entries carry no number.
type PageLink struct {
	Number   int
	Label    string
	Current  bool
	Ellipsis bool
}

// Controls describes the pagination bar.
type Controls struct {
	FirstDisabled bool
	PrevDisabled  bool
	NextDisabled  bool
	LastDisabled  bool
	Prev          int
	Next          int
	Last          int
	Links         []PageLink
}

// Controls derives the navigation bar for the page.
func (p Page[T]) Controls() Controls {
	atStart := p.Page <= 1 || p.TotalPages <= 1
	atEnd := p.Page >= p.TotalPages || p.TotalPages <= 1
	c := Controls{
		FirstDisabled: atStart,
		PrevDisabled:  atStart,
		NextDisabled:  atEnd,
		LastDisabled:  atEnd,
		Prev:          max(p.Page-1, 1),
		Next:          min(p.Page+1, p.TotalPages),
		Last:          p.TotalPages,
	}
	c.Links = pageWindow(p.Page, p.TotalPages)
	return c
}

// pageWindow lists every page up to maxPageLinks pages; beyond that it keeps
// the first and last pages plus the neighbours of current, separated by
// ellipsis markers.
func pageWindow(current, total int) []PageLink {
	links := make([]PageLink, 0, maxPageLinks)
	add := func(n int) {
		links = append(links, PageLink{Number: n, Label: strconv.Itoa(n), Current: n == current})
	}
	if total <= maxPageLinks {
		for n := 1; n <= total; n++ {
			add(n)
		}
		return links
	}

	lo, hi := current-1, current+1
	if lo < 2 {
		lo, hi = 2, 4
	}
	if hi > total-1 {
		lo, hi = total-3, total-1
	}
	add(1)
	if lo > 2 {
		links = append(links, PageLink{Label: "…", Ellipsis: true})
	}
	for n := lo; n <= hi; n++ {
		add(n)
	}
	if hi < total-1 {
		links = append(links, PageLink{Label: "…", Ellipsis: true})
	}
	add(total)
	return links
}
