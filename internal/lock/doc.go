// Package lock provides non-blocking named locks for coordinating
// redundant instances.
//
// Locks are lease rows in the shared registry database: whichever
// instance inserts (or steals an expired) lease holds the lock until it
// releases or its TTL lapses. Acquisition never blocks — contended
// callers are told to skip their work, which is exactly what the
// attribute polling scheduler wants.
package lock
