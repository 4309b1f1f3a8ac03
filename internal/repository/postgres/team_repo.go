// internal/repository/postgres/team_repo.go
package postgres

import (
	"context"
	"fmt"

	"leadcrm-service/internal/domain/team"
	xerrors "leadcrm-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TeamRepository resolves team and agent cross-references.
type TeamRepository struct {
	db *pgxpool.Pool
}

func NewTeamRepository(db *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) TeamExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM teams WHERE name = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check team: %w", err)
	}
	return exists, nil
}

func (r *TeamRepository) AgentExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM agents WHERE name = $1 AND is_active = TRUE)`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check agent: %w", err)
	}
	return exists, nil
}

func (r *TeamRepository) ListTeams(ctx context.Context) ([]team.Team, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, business_center, created_at FROM teams ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := []team.Team{}
	for rows.Next() {
		var t team.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.BusinessCenter, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, nil
}

func (r *TeamRepository) FindAgentByName(ctx context.Context, name string) (*team.Agent, error) {
	var a team.Agent
	err := r.db.QueryRow(ctx,
		`SELECT id, name, team_name, email, is_active, created_at FROM agents WHERE name = $1`,
		name,
	).Scan(&a.ID, &a.Name, &a.TeamName, &a.Email, &a.IsActive, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find agent: %w", err)
	}
	return &a, nil
}
