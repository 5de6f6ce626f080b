package store

import "fmt"

// Type selects which store backend Open constructs.
type Type string

const (
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
	TypeMongo    Type = "mongo"
)

// Config mirrors the reference repo's unified DatabaseConfig shape: one
// Type selector plus a nested config struct per backend, only one of
// which needs to be populated.
type Config struct {
	Type Type

	SQLite   SQLiteConfig
	Postgres *PostgresConfig
	Mongo    *MongoConfig
}

// SQLiteConfig points at the on-disk sqlite file backing the run index;
// this is the zero-dependency default so a single-binary CLI run needs
// no external database.
type SQLiteConfig struct {
	Path string
}

// PostgresConfig holds PostgreSQL connection parameters for multi-worker
// deployments sharing one run index.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// MongoConfig holds MongoDB connection parameters, an alternative to
// Postgres for deployments that already run a Mongo cluster for other
// services and would rather not stand up Postgres just for this index.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultConfig returns a Config using the sqlite backend.
func DefaultConfig() Config {
	return Config{
		Type:   TypeSQLite,
		SQLite: SQLiteConfig{Path: "/var/lib/wdlrun/runs.db"},
	}
}

// Validate checks that the selected backend's nested config is present
// and minimally sane.
func (c Config) Validate() error {
	switch c.Type {
	case TypeSQLite, "":
		if c.SQLite.Path == "" {
			return fmt.Errorf("store: sqlite Path cannot be empty")
		}
	case TypePostgres:
		if c.Postgres == nil || c.Postgres.Database == "" {
			return fmt.Errorf("store: postgres configuration requires a Database")
		}
	case TypeMongo:
		if c.Mongo == nil || c.Mongo.URI == "" {
			return fmt.Errorf("store: mongo configuration requires a URI")
		}
	default:
		return fmt.Errorf("store: unknown backend type %q", c.Type)
	}
	return nil
}
