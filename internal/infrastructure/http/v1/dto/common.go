// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// --- Pagination ---

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Page is a normalized limit/offset pair.
type Page struct {
	Limit  int
	Offset int
}

// NewPage clamps raw query values to the allowed range.
func NewPage(limit, offset int) Page {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit,omitempty"`
	Offset     int   `json:"offset"`
}

// NewListResponse builds a paginated list body.
func NewListResponse(items any, total int, page Page) ListResponse {
	return ListResponse{
		Items:      items,
		TotalCount: int64(total),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
}

// ItemsResponse wraps an unpaginated list.
type ItemsResponse struct {
	Items any `json:"items"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
