// Package pagination slices in-memory lists into pages and computes the
// page-number window shown under paginated tables.
package pagination

// WindowSize is the number of page links shown at once.
const WindowSize = 3

// Page is one page of items plus the derived page counters.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int   `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	Window     []int `json:"window"`
}

// TotalPages returns max(1, ceil(n/pageSize)). A pageSize below 1 is treated as 1.
func TotalPages(n, pageSize int) int {
	if pageSize < 1 {
		pageSize = 1
	}
	if n <= 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

// Slice returns items[(page-1)*pageSize : page*pageSize] clamped to the
// bounds of items. A page past the end yields an empty slice; the page
// number itself is not clamped.
func Slice[T any](items []T, page, pageSize int) []T {
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		return []T{}
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Paginate returns the visible slice and counters for page. It does not
// clamp page; use Clamp first for navigation-style access.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	total := TotalPages(len(items), pageSize)
	return Page[T]{
		Items:      Slice(items, page, pageSize),
		Page:       page,
		PageSize:   pageSize,
		TotalItems: len(items),
		TotalPages: total,
		Window:     Window(Clamp(page, total), total),
	}
}

// Clamp restricts page to [1, max(1, totalPages)].
func Clamp(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Window returns at most WindowSize consecutive page numbers around current.
// It is [1 2 3] on the first page, the last three on the last page, and
// [current-1 current current+1] otherwise. With three or fewer pages every
// page is listed.
func Window(current, totalPages int) []int {
	if totalPages < 1 {
		totalPages = 1
	}
	current = Clamp(current, totalPages)

	start := current - 1
	end := current + 1
	if start < 1 {
		start = 1
		end = WindowSize
	}
	if end > totalPages {
		end = totalPages
		start = max(totalPages-WindowSize+1, 1)
	}

	out := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		out = append(out, p)
	}
	return out
}

// Rank returns the 1-based position of the idx-th item on page.
func Rank(page, pageSize, idx int) int {
	return (page-1)*pageSize + idx + 1
}

// State is a cursor over a list of a known length.
type State struct {
	current  int
	pageSize int
	total    int
}

// NewState starts at page 1.
func NewState(pageSize int) *State {
	if pageSize < 1 {
		pageSize = 1
	}
	return &State{current: 1, pageSize: pageSize}
}

// SetTotal updates the item count and re-clamps the current page.
func (s *State) SetTotal(n int) {
	s.total = n
	s.current = Clamp(s.current, s.TotalPages())
}

// Reset returns to page 1.
func (s *State) Reset() {
	s.current = 1
}

func (s *State) Current() int    { return s.current }
func (s *State) PageSize() int   { return s.pageSize }
func (s *State) TotalPages() int { return TotalPages(s.total, s.pageSize) }

// Next advances one page unless already on the last one.
func (s *State) Next() int {
	if s.current < s.TotalPages() {
		s.current++
	}
	return s.current
}

// Prev goes back one page unless already on the first one.
func (s *State) Prev() int {
	if s.current > 1 {
		s.current--
	}
	return s.current
}

// GoTo jumps to n clamped to [1, TotalPages].
func (s *State) GoTo(n int) int {
	s.current = Clamp(n, s.TotalPages())
	return s.current
}

// Window is the page-number window for the current page.
func (s *State) Window() []int {
	return Window(s.current, s.TotalPages())
}
