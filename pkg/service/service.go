package service

import (
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/mopad/mopad/pkg/hub"
	"github.com/mopad/mopad/pkg/log"
	"github.com/mopad/mopad/pkg/protocol"
	"github.com/mopad/mopad/pkg/storage"
	"github.com/mopad/mopad/pkg/types"
)

// DefaultTokenTTL is how long a minted bearer token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Domain rejections. Surfaced to the originating client only, never
// broadcast.
var (
	ErrUnknownTeam          = errors.New("unknown team")
	ErrAlreadyRegistered    = errors.New("user already registered for this team")
	ErrUnknownUser          = errors.New("unknown user")
	ErrWrongPassword        = errors.New("wrong password")
	ErrUnknownToken         = errors.New("unknown token")
	ErrUnknownUserFromToken = errors.New("token references an unknown user")
)

// Session is the authenticated, connection-scoped identity. It is owned
// exclusively by one connection and never shared. Capabilities are a
// snapshot of the user's roles at authentication time.
type Session struct {
	UserID       types.UserID
	Capabilities types.CapabilitySet
	Token        string
}

// Service implements every state-changing operation: authentication and
// the talk commands. All mutations follow the same discipline: take the
// store write lock, mutate, commit the touched collections, publish the
// delta, release the lock. Nothing becomes visible to other connections
// before it is durable.
type Service struct {
	store    *storage.Store
	hub      *hub.Hub
	logger   zerolog.Logger
	tokenTTL time.Duration
	now      func() time.Time
}

// New creates a service on top of the given store and broadcast hub.
func New(store *storage.Store, broadcast *hub.Hub) *Service {
	return &Service{
		store:    store,
		hub:      broadcast,
		logger:   log.WithComponent("service"),
		tokenTTL: DefaultTokenTTL,
		now:      time.Now,
	}
}

// SetTokenTTL overrides the default lifetime of newly minted tokens.
// Already-issued tokens keep their recorded expiry.
func (s *Service) SetTokenTTL(ttl time.Duration) {
	s.tokenTTL = ttl
}

// Snapshot returns the updates a newly authenticated connection must
// receive before any live event: the full user directory followed by one
// AddTalk per known talk. Computed under one read lock so the snapshot is
// internally consistent.
func (s *Service) Snapshot() []protocol.Update {
	var updates []protocol.Update
	_ = s.store.View(func(d *storage.Data) error {
		updates = make([]protocol.Update, 0, len(d.Talks.Value)+1)
		updates = append(updates, protocol.UsersUpdate(d.Users.Value))

		ids := make([]types.TalkID, 0, len(d.Talks.Value))
		for id := range d.Talks.Value {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			talk := d.Talks.Value[id]
			updates = append(updates, protocol.AddTalkUpdate(talk.Clone()))
		}
		return nil
	})
	return updates
}

// Teams returns the team names offered on the registration form.
func (s *Service) Teams() types.Teams {
	var teams types.Teams
	_ = s.store.View(func(d *storage.Data) error {
		teams = append(types.Teams{}, d.Teams.Value...)
		return nil
	})
	return teams
}

// CalendarData returns independent copies of the talks and users for
// iCalendar rendering.
func (s *Service) CalendarData() (types.Talks, types.Users) {
	talks := types.Talks{}
	users := types.Users{}
	_ = s.store.View(func(d *storage.Data) error {
		for id, talk := range d.Talks.Value {
			talks[id] = talk.Clone()
		}
		for id, user := range d.Users.Value {
			users[id] = user
		}
		return nil
	})
	return talks, users
}
