// ABOUTME: Installation store methods for per-team bot credentials
// ABOUTME: Written by the OAuth callback, read lazily by the Slack client registry

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveInstallation inserts or replaces the credentials for a team.
func (s *SQLiteStore) SaveInstallation(ctx context.Context, inst *Installation) error {
	if inst.InstalledAt.IsZero() {
		inst.InstalledAt = time.Now().UTC()
	}

	query := `
		INSERT INTO installations (team_id, team_name, bot_user_id, bot_token, scope, installed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(team_id) DO UPDATE SET
			team_name = excluded.team_name,
			bot_user_id = excluded.bot_user_id,
			bot_token = excluded.bot_token,
			scope = excluded.scope,
			installed_at = excluded.installed_at
	`
	_, err := s.db.ExecContext(ctx, query,
		inst.TeamID,
		inst.TeamName,
		inst.BotUserID,
		inst.BotToken,
		inst.Scope,
		inst.InstalledAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving installation: %w", err)
	}

	s.logger.Debug("saved installation", "team", inst.TeamID, "bot_user_id", inst.BotUserID)
	return nil
}

// GetInstallation returns the credentials for a team, or ErrNotFound.
func (s *SQLiteStore) GetInstallation(ctx context.Context, teamID string) (*Installation, error) {
	query := `
		SELECT team_id, team_name, bot_user_id, bot_token, scope, installed_at
		FROM installations
		WHERE team_id = ?
	`

	var inst Installation
	var installedAt string
	err := s.reads.QueryRowContext(ctx, query, teamID).Scan(
		&inst.TeamID,
		&inst.TeamName,
		&inst.BotUserID,
		&inst.BotToken,
		&inst.Scope,
		&installedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying installation: %w", err)
	}

	if parsed, err := time.Parse(time.RFC3339, installedAt); err != nil {
		s.logger.Warn("failed to parse installation installed_at", "team", teamID, "error", err)
	} else {
		inst.InstalledAt = parsed
	}
	return &inst, nil
}

// DeleteInstallation removes a team's credentials. Deleting a missing
// installation returns ErrNotFound.
func (s *SQLiteStore) DeleteInstallation(ctx context.Context, teamID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM installations WHERE team_id = ?`, teamID)
	if err != nil {
		return fmt.Errorf("deleting installation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted installation", "team", teamID)
	return nil
}
