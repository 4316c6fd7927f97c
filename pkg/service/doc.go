/*
Package service implements the application core of the talk scheduling
server: registration, login, session resumption from bearer tokens, and
every talk command a connection can issue.

All mutations run inside a single store write-lock window and follow the
same order: authorize, mutate in memory, commit the touched collections
to disk, publish the delta to the hub. Because the publish happens before
the lock is released, the broadcast stream every subscriber sees is the
commit order.

Authorization is a pure function over the session's capability snapshot
and talk ownership. Denied commands are dropped without a reply; the
client learns nothing about talks it may not touch.
*/
package service
