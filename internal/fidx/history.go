package fidx

import (
	"fmt"

	"fidx/internal/model"
)

// GetHistory returns the most recent operations, ordered newest first.
func (s *IndexService) GetHistory(limit int) ([]*model.Operation, error) {
	ops, err := s.database.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Stats summarises the index.
func (s *IndexService) Stats() (*model.Stats, error) {
	stats, err := s.database.Stats()
	if err != nil {
		return nil, fmt.Errorf("computing stats: %w", err)
	}
	return stats, nil
}
