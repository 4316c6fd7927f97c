/*
Package server exposes the application over HTTP.

Routes:

	/api/talks   WebSocket endpoint; the entire command/update protocol
	/api/teams   team names for the registration form
	/talks.ics   iCalendar export, optionally ?user_id=N
	/metrics     Prometheus metrics
	/            static frontend files (when configured)

Every WebSocket connection walks the same lifecycle: upgrade,
authenticate with the first message, receive a consistent snapshot of
users and talks, then exchange commands and broadcast updates until the
socket closes. Malformed inbound JSON closes the connection; unknown but
well-formed message types are ignored.
*/
package server
