/*
Package metrics exposes Prometheus collectors for the scheduling server.

Counters and gauges cover the connection lifecycle (active connections,
lag disconnects), command throughput and authorization denials, broadcast
volume, and persistence health (failed commits, reconciliation passes).
The HTTP handler is mounted at /metrics by the server.
*/
package metrics
