package store

import "fmt"

// Config selects and configures the message store backend.
type Config struct {
	Driver    string          `mapstructure:"driver"` // postgres, mysql, sqlite, cassandra
	SQL       SQLConfig       `mapstructure:"sql"`
	Cassandra CassandraConfig `mapstructure:"cassandra"`
}

// New builds the configured MessageStore implementation.
func New(cfg Config) (MessageStore, error) {
	switch cfg.Driver {
	case "postgres", "mysql", "sqlite":
		sqlCfg := cfg.SQL
		sqlCfg.Driver = cfg.Driver
		db, err := NewDB(sqlCfg)
		if err != nil {
			return nil, err
		}
		return NewGormMessageStore(db)

	case "cassandra":
		return NewCassandraMessageStore(cfg.Cassandra)

	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
