// Package studio defines the boundary contract with the host document SDK:
// read-only access to layouts and variables, plus an opaque private
// key/value slot per document.
//
// The layoutmap core only consumes these interfaces. Adapters here cover the
// storage half of the contract:
//   - MemoryDocument keeps everything in process and backs tests/examples.
//   - RedisStorage stores each document's private data as a Redis hash.
//   - SQLiteStorage stores private data rows in a SQLite table.
//
// Readers are treated as returning the current host truth on every call; no
// caching contract is implied.
package studio
