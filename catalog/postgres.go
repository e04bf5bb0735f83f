package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/proxyfox/proxyfox"
)

// Schema creates the tables read by PostgresCatalog.
const Schema = `
CREATE TABLE IF NOT EXISTS resources (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL DEFAULT '',
    recipient     TEXT NOT NULL,
    upstream_base TEXT NOT NULL,
    network       TEXT NOT NULL DEFAULT 'flow-evm-testnet'
);

CREATE TABLE IF NOT EXISTS actions (
    resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
    id          TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price       NUMERIC(36, 18) NOT NULL DEFAULT 0 CHECK (price >= 0),
    asset       TEXT NOT NULL DEFAULT 'FLOW',
    PRIMARY KEY (resource_id, id)
);
`

const resolveQuery = `
SELECT r.id, r.name, r.recipient, r.upstream_base, r.network,
       a.id, a.description, a.price::text, a.asset
FROM resources r
LEFT JOIN actions a ON a.resource_id = r.id
WHERE r.id = $1
ORDER BY a.id`

const listQuery = `
SELECT r.id, r.name, r.recipient, r.upstream_base, r.network,
       a.id, a.description, a.price::text, a.asset
FROM resources r
LEFT JOIN actions a ON a.resource_id = r.id
ORDER BY r.id, a.id`

// Querier is the subset of *pgxpool.Pool used by PostgresCatalog.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresCatalog reads resources and actions from PostgreSQL on every
// lookup; nothing is cached.
type PostgresCatalog struct {
	db     Querier
	logger *zap.Logger
}

// NewPostgresCatalog creates a catalog over db.
func NewPostgresCatalog(db Querier, logger *zap.Logger) *PostgresCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresCatalog{db: db, logger: logger}
}

// OpenPool parses connString, connects and pings.
func OpenPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the catalog tables if they do not exist.
func (c *PostgresCatalog) Migrate(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate catalog schema: %w", err)
	}
	return nil
}

func (c *PostgresCatalog) ResolveResource(ctx context.Context, id string) (*proxyfox.Resource, error) {
	rows, err := c.db.Query(ctx, resolveQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query resource %s: %w", id, err)
	}
	resources, err := scanResources(rows)
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return nil, proxyfox.NewResourceNotFound(id)
	}
	return &resources[0], nil
}

func (c *PostgresCatalog) ListResources(ctx context.Context) ([]proxyfox.Resource, error) {
	rows, err := c.db.Query(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return scanResources(rows)
}

func scanResources(rows pgx.Rows) ([]proxyfox.Resource, error) {
	defer rows.Close()

	var resources []proxyfox.Resource
	for rows.Next() {
		var (
			r                                 proxyfox.Resource
			network                           string
			actionID, description, price, sym *string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Recipient, &r.UpstreamBase, &network,
			&actionID, &description, &price, &sym); err != nil {
			return nil, fmt.Errorf("failed to scan resource row: %w", err)
		}
		r.Network = proxyfox.Network(network)

		if n := len(resources); n == 0 || resources[n-1].ID != r.ID {
			resources = append(resources, r)
		}
		if actionID == nil {
			continue
		}

		asset := proxyfox.DefaultAsset
		if sym != nil && *sym != "" {
			asset = *sym
		}
		amount := proxyfox.MustAmount("0", asset)
		if price != nil {
			parsed, err := proxyfox.NewAmount(*price, asset)
			if err != nil {
				return nil, fmt.Errorf("resource %s action %s: %w", r.ID, *actionID, err)
			}
			amount = parsed
		}

		action := proxyfox.Action{ID: *actionID, Price: amount}
		if description != nil {
			action.Description = *description
		}
		last := &resources[len(resources)-1]
		last.Actions = append(last.Actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read resource rows: %w", err)
	}
	return resources, nil
}
