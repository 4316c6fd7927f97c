package service

import (
	"fmt"
	"time"

	"github.com/mopad/mopad/pkg/metrics"
	"github.com/mopad/mopad/pkg/protocol"
	"github.com/mopad/mopad/pkg/storage"
	"github.com/mopad/mopad/pkg/types"
)

const (
	defaultTalkDuration    = types.Seconds(30 * time.Minute)
	defaultTalkDescription = "You can change the title, duration, and description by clicking on them"
)

// Apply runs one post-authentication command: authorize, mutate, commit,
// publish, all under a single write-lock window. Authorization denials and
// commands on vanished talks are silent no-ops; only infrastructure
// failures (a failed commit) surface as errors.
func (s *Service) Apply(session *Session, cmd protocol.Command) error {
	metrics.CommandsTotal.WithLabelValues(string(cmd.Type)).Inc()

	return s.store.Update(func(d *storage.Data) error {
		if !Authorized(session, cmd, d.Talks.Value) {
			metrics.CommandsDenied.Inc()
			s.logger.Debug().
				Uint64("user_id", uint64(session.UserID)).
				Str("command", string(cmd.Type)).
				Uint64("talk_id", uint64(cmd.ID)).
				Msg("command denied")
			return nil
		}

		switch cmd.Type {
		case protocol.CmdAddTalk:
			return s.addTalk(d, session.UserID)
		case protocol.CmdRemoveTalk:
			return s.removeTalk(d, cmd.ID)
		case protocol.CmdUpdateTitle:
			return s.updateTalk(d, cmd.ID, protocol.TitleUpdate(cmd.ID, cmd.Title), func(t *types.Talk) {
				t.Title = cmd.Title
			})
		case protocol.CmdUpdateDescription:
			return s.updateTalk(d, cmd.ID, protocol.DescriptionUpdate(cmd.ID, cmd.Description), func(t *types.Talk) {
				t.Description = cmd.Description
			})
		case protocol.CmdUpdateScheduledAt:
			return s.updateTalk(d, cmd.ID, protocol.ScheduledAtUpdate(cmd.ID, cmd.ScheduledAt), func(t *types.Talk) {
				t.ScheduledAt = cmd.ScheduledAt
			})
		case protocol.CmdUpdateDuration:
			return s.updateTalk(d, cmd.ID, protocol.DurationUpdate(cmd.ID, cmd.Duration), func(t *types.Talk) {
				t.Duration = cmd.Duration
			})
		case protocol.CmdUpdateLocation:
			return s.updateTalk(d, cmd.ID, protocol.LocationUpdate(cmd.ID, cmd.Location), func(t *types.Talk) {
				t.Location = cmd.Location
			})
		case protocol.CmdToggleNerd:
			return s.toggleSignup(d, cmd.ID, session.UserID, true)
		case protocol.CmdToggleNoob:
			return s.toggleSignup(d, cmd.ID, session.UserID, false)
		case protocol.CmdSetAttendanceMode:
			return s.setAttendanceMode(d, session.UserID, cmd.AttendanceMode)
		default:
			// Unknown types are filtered by the decoder already.
			return nil
		}
	})
}

func (s *Service) addTalk(d *storage.Data, creator types.UserID) error {
	user, ok := d.Users.Value[creator]
	if !ok {
		s.logger.Warn().Uint64("user_id", uint64(creator)).Msg("add_talk from unknown user")
		return nil
	}

	id := d.Talks.Value.NextID()
	talk := types.Talk{
		ID:          id,
		Creator:     creator,
		Title:       fmt.Sprintf("New talk from %s", user.Name),
		Description: defaultTalkDescription,
		Duration:    defaultTalkDuration,
		Nerds:       types.UserIDSet{},
		Noobs:       types.UserIDSet{},
	}
	d.Talks.Value[id] = talk
	if err := d.Talks.Commit(); err != nil {
		metrics.CommitErrors.Inc()
		return fmt.Errorf("failed to commit talks: %w", err)
	}
	s.hub.Publish(protocol.AddTalkUpdate(talk.Clone()))
	return nil
}

func (s *Service) removeTalk(d *storage.Data, id types.TalkID) error {
	if _, ok := d.Talks.Value[id]; !ok {
		return nil
	}
	delete(d.Talks.Value, id)
	if err := d.Talks.Commit(); err != nil {
		metrics.CommitErrors.Inc()
		return fmt.Errorf("failed to commit talks: %w", err)
	}
	s.hub.Publish(protocol.RemoveTalkUpdate(id))
	return nil
}

// updateTalk applies one field mutation to an existing talk and publishes
// the matching event. Vanished talks are a no-op.
func (s *Service) updateTalk(d *storage.Data, id types.TalkID, event protocol.Update, mutate func(*types.Talk)) error {
	talk, ok := d.Talks.Value[id]
	if !ok {
		return nil
	}
	mutate(&talk)
	d.Talks.Value[id] = talk
	if err := d.Talks.Commit(); err != nil {
		metrics.CommitErrors.Inc()
		return fmt.Errorf("failed to commit talks: %w", err)
	}
	s.hub.Publish(event)
	return nil
}

// toggleSignup flips the user's membership in one signup set. Joining one
// set leaves the other atomically: the sets stay disjoint, and one event
// per changed set is published.
func (s *Service) toggleSignup(d *storage.Data, id types.TalkID, userID types.UserID, nerd bool) error {
	talk, ok := d.Talks.Value[id]
	if !ok {
		return nil
	}

	target, other := talk.Nerds, talk.Noobs
	if !nerd {
		target, other = talk.Noobs, talk.Nerds
	}

	otherChanged := false
	if target.Contains(userID) {
		target.Remove(userID)
	} else {
		target.Add(userID)
		if other.Contains(userID) {
			other.Remove(userID)
			otherChanged = true
		}
	}

	if err := d.Talks.Commit(); err != nil {
		metrics.CommitErrors.Inc()
		return fmt.Errorf("failed to commit talks: %w", err)
	}

	if nerd {
		s.hub.Publish(protocol.NerdsUpdate(id, talk.Nerds))
		if otherChanged {
			s.hub.Publish(protocol.NoobsUpdate(id, talk.Noobs))
		}
	} else {
		s.hub.Publish(protocol.NoobsUpdate(id, talk.Noobs))
		if otherChanged {
			s.hub.Publish(protocol.NerdsUpdate(id, talk.Nerds))
		}
	}
	return nil
}

func (s *Service) setAttendanceMode(d *storage.Data, userID types.UserID, mode types.AttendanceMode) error {
	if mode != types.AttendanceOnSite && mode != types.AttendanceRemote {
		return nil
	}
	user, ok := d.Users.Value[userID]
	if !ok {
		return nil
	}
	user.AttendanceMode = mode
	d.Users.Value[userID] = user
	if err := d.Users.Commit(); err != nil {
		metrics.CommitErrors.Inc()
		return fmt.Errorf("failed to commit users: %w", err)
	}
	s.hub.Publish(protocol.AttendanceModeUpdate(userID, mode))
	return nil
}
