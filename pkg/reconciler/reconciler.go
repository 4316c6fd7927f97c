package reconciler

import (
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mopad/mopad/pkg/hub"
	"github.com/mopad/mopad/pkg/log"
	"github.com/mopad/mopad/pkg/metrics"
	"github.com/mopad/mopad/pkg/protocol"
	"github.com/mopad/mopad/pkg/storage"
	"github.com/mopad/mopad/pkg/types"
)

// Reconciler folds out-of-band edits to the data directory back into the
// live store. Operators edit the JSON files (to grant roles, fix typos,
// delete spam talks) and send SIGUSR1; the reconciler reloads the files
// and broadcasts the difference as ordinary update events, so connected
// clients converge without reconnecting.
type Reconciler struct {
	store  *storage.Store
	hub    *hub.Hub
	logger zerolog.Logger
	sigCh  chan os.Signal
	stopCh chan struct{}
}

// New creates a reconciler for the given store and broadcast hub.
func New(store *storage.Store, broadcast *hub.Hub) *Reconciler {
	return &Reconciler{
		store:  store,
		hub:    broadcast,
		logger: log.WithComponent("reconciler"),
		sigCh:  make(chan os.Signal, 1),
		stopCh: make(chan struct{}),
	}
}

// Start begins listening for SIGUSR1.
func (r *Reconciler) Start() {
	signal.Notify(r.sigCh, syscall.SIGUSR1)
	go r.run()
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	signal.Stop(r.sigCh)
	close(r.stopCh)
}

func (r *Reconciler) run() {
	for {
		select {
		case <-r.sigCh:
			if err := r.Rescan(); err != nil {
				r.logger.Error().Err(err).Msg("rescan failed, keeping in-memory state")
			}
		case <-r.stopCh:
			return
		}
	}
}

// Rescan reloads every collection from disk and replaces the in-memory
// state with what it finds, publishing one event per observed difference.
// Nothing is written back: disk is the source of truth here. If any file
// fails to load the whole pass is abandoned and memory stays untouched.
func (r *Reconciler) Rescan() error {
	started := time.Now()
	fresh, err := storage.LoadData(r.store.Dir())
	if err != nil {
		return fmt.Errorf("failed to reload data directory: %w", err)
	}

	var events []protocol.Update
	err = r.store.Update(func(d *storage.Data) error {
		d.Teams.Value = fresh.Teams.Value

		if !reflect.DeepEqual(d.Users.Value, fresh.Users.Value) {
			d.Users.Value = fresh.Users.Value
			events = append(events, protocol.UsersUpdate(d.Users.Value))
		}

		events = append(events, diffTalks(d.Talks.Value, fresh.Talks.Value)...)
		d.Talks.Value = fresh.Talks.Value

		// Tokens stay as they are: they are server-minted, never
		// hand-edited, and replacing them would revoke live sessions.

		for _, event := range events {
			r.hub.Publish(event)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.ReconcileRuns.Inc()
	r.logger.Info().
		Int("events", len(events)).
		Dur("took", time.Since(started)).
		Msg("rescan complete")
	return nil
}

// diffTalks computes the events that carry an old talk collection to a
// new one: removals first, then additions, then per-field updates, each
// group in ascending ID order.
func diffTalks(old, fresh types.Talks) []protocol.Update {
	var events []protocol.Update

	for _, id := range sortedTalkIDs(old) {
		if _, ok := fresh[id]; !ok {
			events = append(events, protocol.RemoveTalkUpdate(id))
		}
	}

	for _, id := range sortedTalkIDs(fresh) {
		after := fresh[id]
		before, ok := old[id]
		if !ok {
			events = append(events, protocol.AddTalkUpdate(after.Clone()))
			continue
		}
		events = append(events, diffTalk(&before, &after)...)
	}

	return events
}

func diffTalk(before, after *types.Talk) []protocol.Update {
	var events []protocol.Update
	id := after.ID

	if before.Title != after.Title {
		events = append(events, protocol.TitleUpdate(id, after.Title))
	}
	if before.Description != after.Description {
		events = append(events, protocol.DescriptionUpdate(id, after.Description))
	}
	if !timePtrEqual(before.ScheduledAt, after.ScheduledAt) {
		events = append(events, protocol.ScheduledAtUpdate(id, after.ScheduledAt))
	}
	if before.Duration != after.Duration {
		events = append(events, protocol.DurationUpdate(id, after.Duration))
	}
	if !strPtrEqual(before.Location, after.Location) {
		events = append(events, protocol.LocationUpdate(id, after.Location))
	}
	if !before.Nerds.Equal(after.Nerds) {
		events = append(events, protocol.NerdsUpdate(id, after.Nerds))
	}
	if !before.Noobs.Equal(after.Noobs) {
		events = append(events, protocol.NoobsUpdate(id, after.Noobs))
	}
	return events
}

func sortedTalkIDs(talks types.Talks) []types.TalkID {
	ids := make([]types.TalkID, 0, len(talks))
	for id := range talks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
