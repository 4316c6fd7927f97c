package service

import (
	"fmt"

	"github.com/mopad/mopad/pkg/storage"
	"github.com/mopad/mopad/pkg/types"
)

// ResetPassword replaces the stored password hash for the user identified
// by name and team, and revokes every token that user holds. It backs the
// admin CLI and is meant to run against the live data directory; the
// reconciler picks the change up on the next rescan if a server is
// running.
func (s *Service) ResetPassword(name, team, password string) (types.UserID, error) {
	var userID types.UserID
	err := s.store.Update(func(d *storage.Data) error {
		user, exists := d.Users.Value.FindByNameAndTeam(name, team)
		if !exists {
			return ErrUnknownUser
		}

		hash, err := hashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
		d.Users.Value[user.ID] = user
		if err := d.Users.Commit(); err != nil {
			return fmt.Errorf("failed to commit users: %w", err)
		}

		for token, data := range d.Tokens.Value {
			if data.UserID == user.ID {
				delete(d.Tokens.Value, token)
			}
		}
		if err := d.Tokens.Commit(); err != nil {
			return fmt.Errorf("failed to commit tokens: %w", err)
		}

		userID = user.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("name", name).Str("team", team).Uint64("user_id", uint64(userID)).Msg("password reset")
	return userID, nil
}
