package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxyfox/proxyfox"
)

type fakeRows struct {
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d columns, %d destinations", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case **string:
			if row[i] == nil {
				*p = nil
				continue
			}
			s := row[i].(string)
			*p = &s
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type fakeQuerier struct {
	rows     [][]any
	queryErr error
	execs    []string
	lastArgs []any
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	q.lastArgs = args
	return &fakeRows{data: q.rows}, nil
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execs = append(q.execs, sql)
	return pgconn.CommandTag{}, nil
}

func TestPostgresCatalog_ResolveResource(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{
		{"srv-1", "Weather", "0xabc", "http://up", "flow-evm-testnet", "ping", "", "0.000000000000000000", "FLOW"},
		{"srv-1", "Weather", "0xabc", "http://up", "flow-evm-testnet", "weather", "current", "5.000000000000000000", "FLOW"},
	}}
	cat := NewPostgresCatalog(q, nil)

	r, err := cat.ResolveResource(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Equal(t, []any{"srv-1"}, q.lastArgs)
	assert.Equal(t, "Weather", r.Name)
	assert.Equal(t, proxyfox.Network("flow-evm-testnet"), r.Network)
	require.Len(t, r.Actions, 2)
	assert.True(t, r.Actions[0].Price.IsZero())
	assert.True(t, r.Actions[1].Price.Equal(proxyfox.MustAmount("5", "FLOW")))
	assert.Equal(t, "current", r.Actions[1].Description)
}

func TestPostgresCatalog_ResourceWithoutActions(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{
		{"srv-1", "", "0xabc", "http://up", "flow-evm-testnet", nil, nil, nil, nil},
	}}
	r, err := NewPostgresCatalog(q, nil).ResolveResource(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Empty(t, r.Actions)
}

func TestPostgresCatalog_NotFound(t *testing.T) {
	_, err := NewPostgresCatalog(&fakeQuerier{}, nil).ResolveResource(context.Background(), "missing")
	assert.ErrorIs(t, err, proxyfox.ErrResourceNotFound)
}

func TestPostgresCatalog_QueryError(t *testing.T) {
	q := &fakeQuerier{queryErr: errors.New("connection reset")}
	_, err := NewPostgresCatalog(q, nil).ResolveResource(context.Background(), "srv-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, proxyfox.ErrResourceNotFound)
}

func TestPostgresCatalog_List(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{
		{"a", "", "0x1", "http://a", "flow-evm-testnet", "x", "", "1", "FLOW"},
		{"a", "", "0x1", "http://a", "flow-evm-testnet", "y", "", "2", "FLOW"},
		{"b", "", "0x2", "http://b", "flow-evm-mainnet", nil, nil, nil, nil},
	}}
	list, err := NewPostgresCatalog(q, nil).ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Len(t, list[0].Actions, 2)
	assert.Empty(t, list[1].Actions)
}

func TestPostgresCatalog_Migrate(t *testing.T) {
	q := &fakeQuerier{}
	require.NoError(t, NewPostgresCatalog(q, nil).Migrate(context.Background()))
	require.Len(t, q.execs, 1)
	assert.Contains(t, q.execs[0], "CREATE TABLE IF NOT EXISTS actions")
}
