/*
Package hub provides the process-wide broadcast bus that keeps all
connected clients eventually consistent.

Every committed mutation is published here exactly once; every connection
subscribes once and forwards received events to its socket in order. The
hub owns no entity state, it only carries copies of already-committed
facts.

Delivery is non-blocking for publishers. A subscriber that falls behind
its buffer is disconnected from the stream (channel closed, Lagged set)
rather than silently skipped, so the owning connection can terminate and
force the client to resynchronize with a fresh snapshot.
*/
package hub
