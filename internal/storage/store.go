package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when nothing is stored under the key
var ErrNotFound = errors.New("storage: key not found")

// Store is durable client-side storage for small string values.
// The session keeps its token under a single key.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Close releases any underlying resources
	Close() error
}

// Driver identifies a storage backend
type Driver string

const (
	DriverFile     Driver = "file"
	DriverSQLite   Driver = "sqlite"
	DriverRedis    Driver = "redis"
	DriverKeychain Driver = "keychain" // macOS only
)

// DriverInfo describes a storage backend option
type DriverInfo struct {
	ID          Driver
	Name        string
	Description string
}

// AvailableDrivers returns all storage backends
func AvailableDrivers() []DriverInfo {
	return []DriverInfo{
		{
			ID:          DriverFile,
			Name:        "File",
			Description: "JSON file in the config directory",
		},
		{
			ID:          DriverSQLite,
			Name:        "SQLite",
			Description: "Key/value table in a local SQLite database",
		},
		{
			ID:          DriverRedis,
			Name:        "Redis",
			Description: "Shared Redis instance (kiosk deployments)",
		},
		{
			ID:          DriverKeychain,
			Name:        "Keychain",
			Description: "macOS login keychain",
		},
	}
}

// IsKnownDriver reports whether d names a supported backend
func IsKnownDriver(d Driver) bool {
	for _, info := range AvailableDrivers() {
		if info.ID == d {
			return true
		}
	}
	return false
}

// Options configures the backend returned by Open
type Options struct {
	// Path is the file or database path (file, sqlite)
	Path string

	// RedisAddr, RedisPassword and RedisDB select the redis instance
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Prefix namespaces keys in shared backends (redis)
	Prefix string

	// Service is the keychain service name (keychain)
	Service string
}

// Open creates a store for the given driver
func Open(driver Driver, opts Options) (Store, error) {
	switch driver {
	case DriverFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("file storage requires a path")
		}
		return NewFileStore(opts.Path), nil
	case DriverSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		return OpenSQLite(opts.Path)
	case DriverRedis:
		return OpenRedis(opts)
	case DriverKeychain:
		return NewKeychainStore(opts.Service), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
