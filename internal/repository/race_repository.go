package repository

import (
	"context"
	"errors"
	"fmt"

	"race-kart/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// raceRepository implements the RaceRepository interface using PostgreSQL.
type raceRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewRaceRepository creates a new PostgreSQL-backed race repository.
func NewRaceRepository(pool *pgxpool.Pool, logger zerolog.Logger) RaceRepository {
	return &raceRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "race").Logger(),
	}
}

const raceColumns = `id, name, image, location, race_date, options, created_at`

func scanRace(row pgx.Row) (model.Race, error) {
	var r model.Race
	err := row.Scan(&r.ID, &r.Name, &r.Image, &r.Location, &r.Date, &r.Options, &r.CreatedAt)
	return r, err
}

// GetAll retrieves races ordered by date with pagination support.
func (r *raceRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Race, error) {
	query := `
		SELECT ` + raceColumns + `
		FROM races
		ORDER BY race_date, name
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to query races")
		return nil, fmt.Errorf("failed to query races: %w", err)
	}
	defer rows.Close()

	races := []model.Race{}
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan race row")
			return nil, fmt.Errorf("failed to scan race: %w", err)
		}
		races = append(races, race)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating race rows")
		return nil, fmt.Errorf("error iterating races: %w", err)
	}

	return races, nil
}

// GetByID retrieves a single race by its ID.
func (r *raceRepository) GetByID(ctx context.Context, id string) (*model.Race, error) {
	query := `
		SELECT ` + raceColumns + `
		FROM races
		WHERE id = $1
	`

	race, err := scanRace(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("race_id", id).Msg("race not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("race_id", id).Msg("failed to query race")
		return nil, fmt.Errorf("failed to query race: %w", err)
	}

	return &race, nil
}
