package db

import (
	"fmt"
	"strings"

	"github.com/gocql/gocql"

	"github.com/acme/crm-pro/internal/config"
)

var scyllaSchema = []string{
	`CREATE TABLE IF NOT EXISTS deliveries_by_run (
		run_id      text,
		position    int,
		phone       text,
		status      text,
		message_id  text,
		error       text,
		occurred_at timestamp,
		duration_ms bigint,
		PRIMARY KEY ((run_id), position)
	) WITH CLUSTERING ORDER BY (position ASC)`,
}

// Scylla wraps a gocql session.
type Scylla struct {
	session *gocql.Session
}

// NewScylla creates a new Scylla session. Unless disabled the keyspace and
// tables are created first.
func NewScylla(cfg config.ScyllaConfig) (*Scylla, error) {
	if !cfg.DisableInitSchema {
		if err := ensureKeyspace(cfg); err != nil {
			return nil, err
		}
	}

	cluster := newCluster(cfg)
	cluster.Keyspace = cfg.Keyspace

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("scylla: create session: %w", err)
	}

	if !cfg.DisableInitSchema {
		for _, stmt := range scyllaSchema {
			if err := session.Query(stmt).Exec(); err != nil {
				session.Close()
				return nil, fmt.Errorf("scylla: ensure schema: %w", err)
			}
		}
	}

	return &Scylla{session: session}, nil
}

func ensureKeyspace(cfg config.ScyllaConfig) error {
	if cfg.Keyspace == "" || strings.ContainsAny(cfg.Keyspace, " ;'\"") {
		return fmt.Errorf("scylla: invalid keyspace %q", cfg.Keyspace)
	}
	session, err := newCluster(cfg).CreateSession()
	if err != nil {
		return fmt.Errorf("scylla: bootstrap session: %w", err)
	}
	defer session.Close()

	stmt := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}`, cfg.Keyspace)
	if err := session.Query(stmt).Exec(); err != nil {
		return fmt.Errorf("scylla: create keyspace: %w", err)
	}
	return nil
}

func newCluster(cfg config.ScyllaConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	cluster.Consistency = parseConsistency(cfg.Consistency)
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}
	cluster.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: 3}
	return cluster
}

// Session exposes the gocql session.
func (s *Scylla) Session() *gocql.Session {
	return s.session
}

// Close shuts down the session.
func (s *Scylla) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	return nil
}

func parseConsistency(level string) gocql.Consistency {
	switch level {
	case "one":
		return gocql.One
	case "local_quorum":
		return gocql.LocalQuorum
	case "local_one":
		return gocql.LocalOne
	case "each_quorum":
		return gocql.EachQuorum
	case "quorum":
		fallthrough
	default:
		return gocql.Quorum
	}
}
