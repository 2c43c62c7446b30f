package service

import (
	"context"
	"fmt"

	"race-kart/internal/model"
	"race-kart/internal/repository"

	"github.com/rs/zerolog"
)

// raceService implements RaceService.
type raceService struct {
	raceRepo repository.RaceRepository
	logger   zerolog.Logger
}

// NewRaceService creates a new race service.
func NewRaceService(raceRepo repository.RaceRepository, logger zerolog.Logger) RaceService {
	return &raceService{
		raceRepo: raceRepo,
		logger:   logger.With().Str("service", "race").Logger(),
	}
}

// GetAll retrieves races with pagination, clamping limit to 1..100.
func (s *raceService) GetAll(ctx context.Context, limit, offset int) ([]model.Race, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	races, err := s.raceRepo.GetAll(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to get races")
		return nil, fmt.Errorf("failed to get races: %w", err)
	}

	s.logger.Debug().
		Int("count", len(races)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved races")

	return races, nil
}

// GetByID retrieves a single race. A missing race is not an error: the cart
// treats it as a silent no-op and the handler maps it to 404.
func (s *raceService) GetByID(ctx context.Context, id string) (*model.Race, error) {
	if id == "" {
		return nil, nil
	}

	race, err := s.raceRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("race_id", id).Msg("failed to get race by ID")
		return nil, fmt.Errorf("failed to get race: %w", err)
	}

	if race == nil {
		s.logger.Debug().Str("race_id", id).Msg("race not found")
	}

	return race, nil
}
