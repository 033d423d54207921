package users

import (
	"math"
	"strings"

	"github.com/ecoguard/ecoguard/internal/auth"
)

// ListFilter narrows a user listing.
type ListFilter struct {
	Query   string
	Page    int
	PerPage int
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Page is one page of users.
type Page struct {
	Users      []auth.User
	Pagination Pagination
}

const (
	maxPerPage = 100
	// maxPage keeps (Page-1)*PerPage far from overflowing OFFSET.
	maxPage = 100000
)

func (f ListFilter) normalized() ListFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
	if f.Page > maxPage {
		f.Page = maxPage
	}
	return f
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a search term into a substring LIKE pattern in which the
// term's own wildcards match literally.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
}

func (f ListFilter) offset() int {
	return (f.Page - 1) * f.PerPage
}
