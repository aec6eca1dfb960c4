package notifications

import (
	"context"
	"fmt"

	"municipal/internal/shared/utils/response"
)

type Service interface {
	History(ctx context.Context, query HistoryQuery) (*response.Page, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) History(ctx context.Context, query HistoryQuery) (*response.Page, error) {
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 20
	}

	records, total, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification history: %w", err)
	}

	page := response.NewPage(records, total, query.Page, query.Limit)
	return &page, nil
}
