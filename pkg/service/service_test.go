package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mopad/mopad/pkg/hub"
	"github.com/mopad/mopad/pkg/protocol"
	"github.com/mopad/mopad/pkg/storage"
	"github.com/mopad/mopad/pkg/types"
)

func newTestService(t *testing.T) (*Service, *storage.Store, *hub.Hub) {
	t.Helper()

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "teams.json"), []byte(`["Infra", "Platform"]`), 0600)
	require.NoError(t, err)

	store, err := storage.Open(dir)
	require.NoError(t, err)

	broadcast := hub.New(hub.DefaultBuffer)
	return New(store, broadcast), store, broadcast
}

// drainUpdates collects every event currently buffered on the
// subscription without blocking.
func drainUpdates(sub *hub.Subscription) []protocol.Update {
	var updates []protocol.Update
	for {
		select {
		case u, ok := <-sub.Events():
			if !ok {
				return updates
			}
			updates = append(updates, u)
		default:
			return updates
		}
	}
}

func grantRoles(t *testing.T, store *storage.Store, id types.UserID, roles ...types.Role) {
	t.Helper()
	err := store.Update(func(d *storage.Data) error {
		user := d.Users.Value[id]
		user.Roles = roles
		d.Users.Value[id] = user
		return d.Users.Commit()
	})
	require.NoError(t, err)
}

func TestRegister(t *testing.T) {
	svc, store, broadcast := newTestService(t)
	sub := broadcast.Subscribe()
	defer sub.Close()

	session, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, types.UserID(1), session.UserID)
	assert.NotEmpty(t, session.Token)
	assert.Empty(t, session.Capabilities)

	updates := drainUpdates(sub)
	require.Len(t, updates, 1)
	assert.Equal(t, protocol.UpdUsers, updates[0].Type)
	assert.Equal(t, "alice", updates[0].Users[1].Name)

	// The hash never leaves the store in plain form.
	err = store.View(func(d *storage.Data) error {
		user := d.Users.Value[1]
		assert.NotEqual(t, "hunter2", user.PasswordHash)
		assert.NotEmpty(t, user.PasswordHash)
		return nil
	})
	require.NoError(t, err)
}

func TestRegisterUnknownTeam(t *testing.T) {
	svc, _, broadcast := newTestService(t)
	sub := broadcast.Subscribe()
	defer sub.Close()

	_, err := svc.Register("alice", "Marketing", types.AttendanceOnSite, "hunter2")
	assert.ErrorIs(t, err, ErrUnknownTeam)
	assert.Empty(t, drainUpdates(sub))
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)

	_, err = svc.Register("alice", "Infra", types.AttendanceRemote, "other")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	// Same name on a different team is a different user.
	_, err = svc.Register("alice", "Platform", types.AttendanceOnSite, "hunter2")
	assert.NoError(t, err)
}

func TestRegisterConcurrentDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
			results <- err
		}()
	}

	var failures []error
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			failures = append(failures, err)
		}
	}

	// Exactly one of the two wins the write-lock race.
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrAlreadyRegistered)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestService(t)

	registered, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)

	session, err := svc.Login("alice", "Infra", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, session.UserID)
	assert.NotEqual(t, registered.Token, session.Token, "every login mints a fresh token")

	_, err = svc.Login("alice", "Infra", "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = svc.Login("bob", "Infra", "hunter2")
	assert.ErrorIs(t, err, ErrUnknownUser)

	_, err = svc.Login("alice", "Marketing", "hunter2")
	assert.ErrorIs(t, err, ErrUnknownTeam)
}

func TestLoginCapabilities(t *testing.T) {
	svc, store, _ := newTestService(t)

	registered, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)
	grantRoles(t, store, registered.UserID, types.RoleEditor)

	session, err := svc.Login("alice", "Infra", "hunter2")
	require.NoError(t, err)
	assert.True(t, session.Capabilities.Contains(types.CapDeleteOtherTalks))
	assert.False(t, session.Capabilities.Contains(types.CapChangeOtherLocations))
}

func TestRelogin(t *testing.T) {
	svc, store, _ := newTestService(t)

	registered, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)

	session, err := svc.Relogin(registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, session.UserID)
	assert.Equal(t, registered.Token, session.Token)

	_, err = svc.Relogin("no-such-token")
	assert.ErrorIs(t, err, ErrUnknownToken)

	// Roles granted after the token was minted are visible on relogin.
	grantRoles(t, store, registered.UserID, types.RoleScheduler)
	session, err = svc.Relogin(registered.Token)
	require.NoError(t, err)
	assert.True(t, session.Capabilities.Contains(types.CapChangeOtherScheduledAts))
}

func TestReloginExpiredToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	registered, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(DefaultTokenTTL + time.Minute) }
	_, err = svc.Relogin(registered.Token)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestAddTalkDefaults(t *testing.T) {
	svc, store, broadcast := newTestService(t)
	session, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)

	sub := broadcast.Subscribe()
	defer sub.Close()

	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdAddTalk}))

	updates := drainUpdates(sub)
	require.Len(t, updates, 1)
	assert.Equal(t, protocol.UpdAddTalk, updates[0].Type)
	talk := updates[0].Talk
	require.NotNil(t, talk)
	assert.Equal(t, types.TalkID(1), talk.ID)
	assert.Equal(t, session.UserID, talk.Creator)
	assert.Equal(t, "New talk from alice", talk.Title)
	assert.Equal(t, defaultTalkDescription, talk.Description)
	assert.Equal(t, defaultTalkDuration, talk.Duration)
	assert.Nil(t, talk.ScheduledAt)
	assert.Nil(t, talk.Location)
	assert.Empty(t, talk.Nerds)
	assert.Empty(t, talk.Noobs)

	err = store.View(func(d *storage.Data) error {
		assert.Len(t, d.Talks.Value, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestCreatorEditsOwnTalk(t *testing.T) {
	svc, store, broadcast := newTestService(t)
	session, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdAddTalk}))

	sub := broadcast.Subscribe()
	defer sub.Close()

	at := time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC)
	room := "Auditorium"
	commands := []protocol.Command{
		{Type: protocol.CmdUpdateTitle, ID: 1, Title: "Generics in practice"},
		{Type: protocol.CmdUpdateDescription, ID: 1, Description: "A tour"},
		{Type: protocol.CmdUpdateScheduledAt, ID: 1, ScheduledAt: &at},
		{Type: protocol.CmdUpdateDuration, ID: 1, Duration: types.Seconds(45 * time.Minute)},
		{Type: protocol.CmdUpdateLocation, ID: 1, Location: &room},
	}
	for _, cmd := range commands {
		require.NoError(t, svc.Apply(session, cmd))
	}

	updates := drainUpdates(sub)
	require.Len(t, updates, 5)
	assert.Equal(t, protocol.UpdUpdateTitle, updates[0].Type)
	assert.Equal(t, "Generics in practice", updates[0].Title)
	assert.Equal(t, protocol.UpdUpdateScheduledAt, updates[2].Type)
	require.NotNil(t, updates[2].ScheduledAt)
	assert.True(t, at.Equal(*updates[2].ScheduledAt))

	err = store.View(func(d *storage.Data) error {
		talk := d.Talks.Value[1]
		assert.Equal(t, "Generics in practice", talk.Title)
		assert.Equal(t, types.Seconds(45*time.Minute), talk.Duration)
		require.NotNil(t, talk.Location)
		assert.Equal(t, "Auditorium", *talk.Location)
		return nil
	})
	require.NoError(t, err)
}

func TestClearOptionalFields(t *testing.T) {
	svc, store, _ := newTestService(t)
	session, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdAddTalk}))

	at := time.Now().UTC()
	room := "Auditorium"
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdUpdateScheduledAt, ID: 1, ScheduledAt: &at}))
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdUpdateLocation, ID: 1, Location: &room}))

	// Absent values clear the fields again.
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdUpdateScheduledAt, ID: 1}))
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdUpdateLocation, ID: 1}))

	err = store.View(func(d *storage.Data) error {
		talk := d.Talks.Value[1]
		assert.Nil(t, talk.ScheduledAt)
		assert.Nil(t, talk.Location)
		return nil
	})
	require.NoError(t, err)
}

func TestDenialIsSilent(t *testing.T) {
	svc, store, broadcast := newTestService(t)
	creator, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)
	other, err := svc.Register("bob", "Platform", types.AttendanceRemote, "sekrit")
	require.NoError(t, err)
	require.NoError(t, svc.Apply(creator, protocol.Command{Type: protocol.CmdAddTalk}))

	sub := broadcast.Subscribe()
	defer sub.Close()

	// No capability, not the creator: dropped without an error and
	// without an event.
	err = svc.Apply(other, protocol.Command{Type: protocol.CmdUpdateTitle, ID: 1, Title: "hijacked"})
	require.NoError(t, err)
	assert.Empty(t, drainUpdates(sub))

	err = store.View(func(d *storage.Data) error {
		assert.Equal(t, "New talk from alice", d.Talks.Value[1].Title)
		return nil
	})
	require.NoError(t, err)

	// A command for a talk that does not exist is equally silent.
	err = svc.Apply(other, protocol.Command{Type: protocol.CmdRemoveTalk, ID: 99})
	require.NoError(t, err)
	assert.Empty(t, drainUpdates(sub))
}

func TestEditorCapabilities(t *testing.T) {
	svc, store, broadcast := newTestService(t)
	creator, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)
	_, err = svc.Register("eve", "Platform", types.AttendanceOnSite, "pw")
	require.NoError(t, err)
	grantRoles(t, store, 2, types.RoleEditor)
	editor, err := svc.Login("eve", "Platform", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.Apply(creator, protocol.Command{Type: protocol.CmdAddTalk}))
	require.NoError(t, svc.Apply(creator, protocol.Command{Type: protocol.CmdAddTalk}))

	sub := broadcast.Subscribe()
	defer sub.Close()

	// Editors may retitle and delete talks they did not create.
	require.NoError(t, svc.Apply(editor, protocol.Command{Type: protocol.CmdUpdateTitle, ID: 1, Title: "Renamed"}))
	require.NoError(t, svc.Apply(editor, protocol.Command{Type: protocol.CmdRemoveTalk, ID: 2}))

	updates := drainUpdates(sub)
	require.Len(t, updates, 2)
	assert.Equal(t, protocol.UpdUpdateTitle, updates[0].Type)
	assert.Equal(t, protocol.UpdRemoveTalk, updates[1].Type)
	assert.Equal(t, types.TalkID(2), updates[1].ID)

	// Scheduling fields stay out of reach for a plain editor.
	at := time.Now().UTC()
	require.NoError(t, svc.Apply(editor, protocol.Command{Type: protocol.CmdUpdateScheduledAt, ID: 1, ScheduledAt: &at}))
	assert.Empty(t, drainUpdates(sub))
}

func TestSchedulerCapabilities(t *testing.T) {
	svc, store, broadcast := newTestService(t)
	creator, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)
	_, err = svc.Register("sam", "Platform", types.AttendanceOnSite, "pw")
	require.NoError(t, err)
	grantRoles(t, store, 2, types.RoleScheduler)
	scheduler, err := svc.Login("sam", "Platform", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.Apply(creator, protocol.Command{Type: protocol.CmdAddTalk}))

	sub := broadcast.Subscribe()
	defer sub.Close()

	at := time.Date(2026, 9, 4, 14, 0, 0, 0, time.UTC)
	room := "Room 2"
	require.NoError(t, svc.Apply(scheduler, protocol.Command{Type: protocol.CmdUpdateScheduledAt, ID: 1, ScheduledAt: &at}))
	require.NoError(t, svc.Apply(scheduler, protocol.Command{Type: protocol.CmdUpdateLocation, ID: 1, Location: &room}))
	require.NoError(t, svc.Apply(scheduler, protocol.Command{Type: protocol.CmdUpdateDuration, ID: 1, Duration: types.Seconds(time.Hour)}))
	assert.Len(t, drainUpdates(sub), 3)

	// Content fields stay out of reach for a plain scheduler.
	require.NoError(t, svc.Apply(scheduler, protocol.Command{Type: protocol.CmdUpdateTitle, ID: 1, Title: "nope"}))
	require.NoError(t, svc.Apply(scheduler, protocol.Command{Type: protocol.CmdRemoveTalk, ID: 1}))
	assert.Empty(t, drainUpdates(sub))

	err = store.View(func(d *storage.Data) error {
		assert.Contains(t, d.Talks.Value, types.TalkID(1))
		return nil
	})
	require.NoError(t, err)
}

func TestToggleSignup(t *testing.T) {
	svc, store, broadcast := newTestService(t)
	session, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdAddTalk}))

	sub := broadcast.Subscribe()
	defer sub.Close()

	// Join as nerd.
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdToggleNerd, ID: 1}))
	updates := drainUpdates(sub)
	require.Len(t, updates, 1)
	assert.Equal(t, protocol.UpdUpdateNerds, updates[0].Type)
	assert.Equal(t, []types.UserID{1}, updates[0].Members)

	// Switching to noob leaves the nerd set in the same operation, with
	// exactly one event per changed set.
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdToggleNoob, ID: 1}))
	updates = drainUpdates(sub)
	require.Len(t, updates, 2)
	assert.Equal(t, protocol.UpdUpdateNoobs, updates[0].Type)
	assert.Equal(t, []types.UserID{1}, updates[0].Members)
	assert.Equal(t, protocol.UpdUpdateNerds, updates[1].Type)
	assert.Empty(t, updates[1].Members)

	err = store.View(func(d *storage.Data) error {
		talk := d.Talks.Value[1]
		assert.False(t, talk.Nerds.Contains(1))
		assert.True(t, talk.Noobs.Contains(1))
		return nil
	})
	require.NoError(t, err)

	// Toggling again leaves the set.
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdToggleNoob, ID: 1}))
	updates = drainUpdates(sub)
	require.Len(t, updates, 1)
	assert.Equal(t, protocol.UpdUpdateNoobs, updates[0].Type)
	assert.Empty(t, updates[0].Members)
}

func TestSetAttendanceMode(t *testing.T) {
	svc, store, broadcast := newTestService(t)
	session, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)

	sub := broadcast.Subscribe()
	defer sub.Close()

	require.NoError(t, svc.Apply(session, protocol.Command{
		Type:           protocol.CmdSetAttendanceMode,
		AttendanceMode: types.AttendanceRemote,
	}))
	updates := drainUpdates(sub)
	require.Len(t, updates, 1)
	assert.Equal(t, protocol.UpdUpdateAttendanceMode, updates[0].Type)
	assert.Equal(t, session.UserID, updates[0].UserID)
	assert.Equal(t, types.AttendanceRemote, updates[0].AttendanceMode)

	// Unknown modes are dropped.
	require.NoError(t, svc.Apply(session, protocol.Command{
		Type:           protocol.CmdSetAttendanceMode,
		AttendanceMode: types.AttendanceMode("hologram"),
	}))
	assert.Empty(t, drainUpdates(sub))

	err = store.View(func(d *storage.Data) error {
		assert.Equal(t, types.AttendanceRemote, d.Users.Value[1].AttendanceMode)
		return nil
	})
	require.NoError(t, err)
}

func TestSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t)
	session, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdAddTalk}))
	require.NoError(t, svc.Apply(session, protocol.Command{Type: protocol.CmdAddTalk}))

	updates := svc.Snapshot()
	require.Len(t, updates, 3)
	assert.Equal(t, protocol.UpdUsers, updates[0].Type)
	assert.Equal(t, protocol.UpdAddTalk, updates[1].Type)
	assert.Equal(t, types.TalkID(1), updates[1].Talk.ID)
	assert.Equal(t, types.TalkID(2), updates[2].Talk.ID)
}

func TestResetPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	registered, err := svc.Register("alice", "Infra", types.AttendanceOnSite, "hunter2")
	require.NoError(t, err)

	id, err := svc.ResetPassword("alice", "Infra", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, id)

	_, err = svc.Login("alice", "Infra", "hunter2")
	assert.ErrorIs(t, err, ErrWrongPassword)
	_, err = svc.Login("alice", "Infra", "correct horse")
	assert.NoError(t, err)

	// Old sessions are revoked along with the password.
	_, err = svc.Relogin(registered.Token)
	assert.ErrorIs(t, err, ErrUnknownToken)

	_, err = svc.ResetPassword("nobody", "Infra", "pw")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestTeams(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.Equal(t, types.Teams{"Infra", "Platform"}, svc.Teams())
}
