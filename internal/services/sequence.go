package services

import (
	"context"
	"fmt"

	"github.com/petroasset/apiserver/types"
)

// SequenceRepository hands out monotonic counter values per name.
type SequenceRepository interface {
	Next(ctx context.Context, name string) (int, error)
}

// SequenceService mints human-readable codes such as "EQ-001".
type SequenceService struct {
	repo SequenceRepository
}

func NewSequenceService(repo SequenceRepository) *SequenceService {
	return &SequenceService{repo: repo}
}

// NextID returns the next unused code for kind. Concurrent callers always
// receive distinct codes.
func (s *SequenceService) NextID(ctx context.Context, kind types.SequenceKind) (string, error) {
	n, err := s.repo.Next(ctx, kind.Name)
	if err != nil {
		return "", fmt.Errorf("next %s sequence: %w", kind.Name, err)
	}
	return kind.FormatCode(n), nil
}
