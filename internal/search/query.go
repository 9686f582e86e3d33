package search

import (
	"errors"
	"fmt"
	"strings"

	"fidx/internal/model"
)

var (
	ErrInvalidOperator   = errors.New("invalid search operator")
	ErrNoKeywords        = errors.New("at least one keyword is required")
	ErrInvalidFileType   = errors.New("invalid file type filter")
	ErrInvalidPagination = errors.New("invalid pagination")
)

// DefaultLimit applies when a request does not set Limit.
const DefaultLimit = 50

// Operator combines keywords.
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
)

// ParseOperator accepts "AND" and "OR" in upper or lower case.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "AND", "and":
		return And, nil
	case "OR", "or":
		return Or, nil
	}
	return "", fmt.Errorf("%w: %q (want AND or OR)", ErrInvalidOperator, s)
}

// QuoteTerm wraps a keyword in double quotes, doubling any inner quotes,
// so the full-text engine reads it as a literal phrase.
func QuoteTerm(keyword string) string {
	return `"` + strings.ReplaceAll(keyword, `"`, `""`) + `"`
}

// BuildExpression quotes every keyword and joins them: a space for AND,
// which the match language treats as conjunction, and " OR " for OR.
func BuildExpression(keywords []string, op Operator) string {
	terms := make([]string, len(keywords))
	for i, k := range keywords {
		terms[i] = QuoteTerm(k)
	}
	if op == Or {
		return strings.Join(terms, " OR ")
	}
	return strings.Join(terms, " ")
}

// Request is a caller's search.
type Request struct {
	Keywords   []string
	Operator   string // "AND" or "OR", upper or lower case
	TypeFilter string // optional FileType name
	Limit      int    // 0 means DefaultLimit
	Offset     int
}

// Query is a validated request ready for the storage match primitive.
type Query struct {
	Expression string
	Operator   Operator
	FileType   *model.FileType
	Limit      int
	Offset     int
}

// Build validates req and produces a Query. Validation happens before any
// storage call: an unknown operator or file type is rejected outright.
func Build(req Request) (*Query, error) {
	op, err := ParseOperator(req.Operator)
	if err != nil {
		return nil, err
	}

	var keywords []string
	for _, k := range req.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}

	q := &Query{
		Expression: BuildExpression(keywords, op),
		Operator:   op,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}

	if strings.TrimSpace(req.TypeFilter) != "" {
		ft, err := model.ParseFileType(req.TypeFilter)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFileType, req.TypeFilter)
		}
		q.FileType = &ft
	}

	if q.Limit < 0 || q.Offset < 0 {
		return nil, fmt.Errorf("%w: limit %d offset %d", ErrInvalidPagination, req.Limit, req.Offset)
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}

	return q, nil
}

// Match is one ranked hit from the storage match primitive.
type Match struct {
	File      *model.FileRecord
	Relevance float64 // higher is more relevant
}

// Result is a Match together with the file's current tags.
type Result struct {
	File      *model.FileRecord
	Tags      []*model.TagRecord
	Relevance float64
}

// Response is one page of results plus the unpaginated total.
type Response struct {
	Results []*Result
	Total   int64
}
