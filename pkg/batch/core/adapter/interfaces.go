// Package adapter defines what every external resource connection shares.
package adapter

// ResourceConnection represents a connection to an external resource (database, object storage).
type ResourceConnection interface {
	// Close releases the connection.
	Close() error
	// Type returns the resource type, e.g. "postgres" or "gcs".
	Type() string
	// Name returns the connection name.
	Name() string
}
