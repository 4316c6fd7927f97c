package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mopad/mopad/pkg/metrics"
	"github.com/mopad/mopad/pkg/protocol"
	"github.com/mopad/mopad/pkg/storage"
	"github.com/mopad/mopad/pkg/types"
)

// Register creates a new user with an empty role set, broadcasts the
// changed user directory, and mints a session token. The whole operation
// runs under one write-lock window so two concurrent registrations of the
// same (name, team) pair cannot both succeed.
func (s *Service) Register(name, team string, mode types.AttendanceMode, password string) (*Session, error) {
	var session *Session
	err := s.store.Update(func(d *storage.Data) error {
		if !d.Teams.Value.Contains(team) {
			return ErrUnknownTeam
		}
		if _, exists := d.Users.Value.FindByNameAndTeam(name, team); exists {
			return ErrAlreadyRegistered
		}

		hash, err := hashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		id := d.Users.Value.NextID()
		d.Users.Value[id] = types.User{
			ID:             id,
			Name:           name,
			Team:           team,
			AttendanceMode: mode,
			PasswordHash:   hash,
		}
		if err := d.Users.Commit(); err != nil {
			metrics.CommitErrors.Inc()
			return fmt.Errorf("failed to commit users: %w", err)
		}

		// A new user changes the directory for everyone.
		s.hub.Publish(protocol.UsersUpdate(d.Users.Value))

		token, err := s.mintToken(d, id)
		if err != nil {
			return err
		}
		session = &Session{UserID: id, Capabilities: types.CapabilitySet{}, Token: token}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("name", name).Str("team", team).Uint64("user_id", uint64(session.UserID)).Msg("user registered")
	return session, nil
}

// Login authenticates an existing user and mints a fresh token. The user
// directory does not change, so nothing is broadcast.
func (s *Service) Login(name, team, password string) (*Session, error) {
	var session *Session
	err := s.store.Update(func(d *storage.Data) error {
		if !d.Teams.Value.Contains(team) {
			return ErrUnknownTeam
		}
		user, exists := d.Users.Value.FindByNameAndTeam(name, team)
		if !exists {
			return ErrUnknownUser
		}

		ok, err := verifyPassword(user.PasswordHash, password)
		if err != nil {
			return fmt.Errorf("failed to verify password for user %d: %w", user.ID, err)
		}
		if !ok {
			return ErrWrongPassword
		}

		token, err := s.mintToken(d, user.ID)
		if err != nil {
			return err
		}
		session = &Session{
			UserID:       user.ID,
			Capabilities: types.Capabilities(user.Roles),
			Token:        token,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Relogin resumes a session from a bearer token. Every call is also a
// garbage-collection tick for expired tokens. Roles are read live, so role
// changes take effect here without re-issuing the token.
func (s *Service) Relogin(token string) (*Session, error) {
	var session *Session
	err := s.store.Update(func(d *storage.Data) error {
		d.Tokens.Value.PurgeExpired(s.now())
		if err := d.Tokens.Commit(); err != nil {
			metrics.CommitErrors.Inc()
			return fmt.Errorf("failed to commit tokens: %w", err)
		}

		data, exists := d.Tokens.Value[token]
		if !exists {
			return ErrUnknownToken
		}
		user, exists := d.Users.Value[data.UserID]
		if !exists {
			// A valid token pointing at a missing user means the files
			// were edited inconsistently out-of-band.
			return ErrUnknownUserFromToken
		}

		session = &Session{
			UserID:       user.ID,
			Capabilities: types.Capabilities(user.Roles),
			Token:        token,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// mintToken purges expired tokens, records a fresh one for userID, and
// commits the token collection. Callers hold the write lock.
func (s *Service) mintToken(d *storage.Data, userID types.UserID) (string, error) {
	token := uuid.NewString()
	now := s.now()
	d.Tokens.Value.PurgeExpired(now)
	d.Tokens.Value.Insert(token, userID, now.Add(s.tokenTTL))
	if err := d.Tokens.Commit(); err != nil {
		metrics.CommitErrors.Inc()
		return "", fmt.Errorf("failed to commit tokens: %w", err)
	}
	return token, nil
}
