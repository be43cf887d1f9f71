package search

import (
	"context"

	"github.com/samber/lo"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/repository"
	"github.com/jwalitptl/homevisit-api/pkg/logger"
)

type Service struct {
	directory    repository.ProfessionalDirectory
	onlyBookable bool
	logger       *logger.Logger
}

// NewService wires the search engine to the directory. With onlyBookable,
// inactive or unverified professionals never show up in results.
func NewService(directory repository.ProfessionalDirectory, onlyBookable bool, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		directory:    directory,
		onlyBookable: onlyBookable,
		logger:       log.With("component", "search"),
	}
}

// Find validates f, loads candidates and runs the strategy matching f.
func (s *Service) Find(ctx context.Context, f Filter) ([]*model.Professional, error) {
	strategy, err := ForFilter(f)
	if err != nil {
		return nil, err
	}

	candidates, err := s.directory.GetCandidates(ctx, repository.CandidateFilter{
		Province:     f.Province,
		District:     f.District,
		Neighborhood: f.Neighborhood,
		OnlyActive:   s.onlyBookable,
	})
	if err != nil {
		return nil, err
	}
	if s.onlyBookable {
		candidates = lo.Filter(candidates, func(p *model.Professional, _ int) bool {
			return p.IsBookable()
		})
	}

	results, err := strategy.Search(candidates, f)
	if err != nil {
		return nil, err
	}

	s.logger.ZL.Debug().
		Str("province", f.Province).
		Int("candidates", len(candidates)).
		Int("results", len(results)).
		Msg("professional search")
	return results, nil
}
