/*
Package reconciler keeps the live store converged with the data directory
when the JSON files are edited out-of-band.

Administrators maintain the deployment by editing the files directly:
granting roles in users.json, deleting spam talks from talks.json, fixing
a title. After editing they send the process SIGUSR1. The reconciler then
reloads all collections, swaps the fresh snapshot in under the store
write lock, and broadcasts one event per actual difference so connected
clients converge without reconnecting:

  - teams are replaced unconditionally (reference data, never diffed)
  - users are replaced wholesale with a single directory event when
    anything differs
  - talks are diffed per field, yielding the same event vocabulary the
    command handlers use

Disk is the source of truth during a rescan. Nothing is committed back,
and a pass that fails to load any file leaves memory untouched.
*/
package reconciler
