// Package snapshot persists session state across websocket detaches. A
// Snapshot is the JSON codec for a session's durable signal values; Store
// implementations keep snapshots in memory, in a bbolt file, or in an S3
// bucket so a client can resume a session against any server instance.
package snapshot
