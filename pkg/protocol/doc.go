/*
Package protocol defines the JSON messages exchanged over one client
connection: a single credentials message inbound, an authentication reply
outbound, then talk commands inbound and update events outbound.

Every message is a flat JSON object with a "type" tag. Fields that do not
belong to the tagged variant are omitted. Two decode outcomes are
distinguished on inbound messages: malformed JSON is a protocol violation
(the connection is closed), while a well-formed message with an unknown
type is ignored, so older clients survive protocol additions.

Update events carry copies of already-committed state. They never alias
live store memory; talks are cloned before publishing.
*/
package protocol
