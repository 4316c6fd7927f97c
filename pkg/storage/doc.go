/*
Package storage implements write-through persistence for the scheduling
state: one JSON document per collection, mirrored into memory and guarded
by a single store-wide reader/writer lock.

# Durable collections

Each Collection pairs an in-memory value with its file. Loading creates a
default-valued document if the file is missing. Commit writes atomically:
serialize, write to a temporary sibling path, fsync, rename over the
target. Readers of the file (including the disk reconciler and humans with
a text editor) never observe a partial document.

Commit failures are surfaced to the caller but the in-memory mutation is
not rolled back. Memory and disk may diverge until the next successful
commit or the next reconciler pass, which overwrites memory from disk.

# The store

Store holds teams, users, talks, and tokens behind one RWMutex. The lock
is store-wide rather than per-collection because operations such as
registration atomically read teams and write users. Access is scoped
through closures:

	store.View(func(d *storage.Data) error { ... })   // shared
	store.Update(func(d *storage.Data) error { ... }) // exclusive

Update calls serialize all mutations, so commit order is a total order
across the process. Callers must not hold the lock across socket I/O.

# Files

	teams.json   array of team names
	users.json   array of user records
	talks.json   array of talk records
	tokens.json  object keyed by token

These shapes are stable; the disk reconciler depends on them to diff
externally edited files against live state.
*/
package storage
