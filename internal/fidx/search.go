package fidx

import (
	"fmt"

	"fidx/internal/search"
)

// Search validates req, runs it against the full-text index and attaches
// each hit's current tags. Invalid requests fail before any query runs.
func (s *IndexService) Search(req search.Request) (*search.Response, error) {
	q, err := search.Build(req)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("searching", "expression", q.Expression, "limit", q.Limit, "offset", q.Offset)

	matches, total, err := s.database.FullTextSearch(q.Expression, q.FileType, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}

	resp := &search.Response{Results: make([]*search.Result, 0, len(matches)), Total: total}
	for _, m := range matches {
		tags, err := s.database.GetTagsForFile(m.File.ID)
		if err != nil {
			return nil, fmt.Errorf("loading tags for %s: %w", m.File.Path, err)
		}
		resp.Results = append(resp.Results, &search.Result{
			File:      m.File,
			Tags:      tags,
			Relevance: m.Relevance,
		})
	}
	return resp, nil
}
