// Package pool manages a fixed set of tables that players join on a
// first-fit basis.
package pool

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/freezeout/internal/accountstore"
	"github.com/lox/freezeout/internal/protocol"
	"github.com/lox/freezeout/internal/randutil"
	"github.com/lox/freezeout/internal/table"
)

// Pool holds a fixed number of tables and assigns joining players to the
// first one with an open seat, matching the original TablesPool::join
// policy: try each table in order, and once a join fills a table's last
// seat move it to the back of the list so free tables are tried first.
type Pool struct {
	mu     sync.Mutex
	tables []*table.Table

	seats int
	sk    protocol.SigningKey
	store accountstore.Store
	clock quartz.Clock
	log   zerolog.Logger

	nextTableID uint32
}

// New creates a pool of n tables, each with the given seat count, and
// starts each table's command loop under ctx.
func New(ctx context.Context, n, seats int, sk protocol.SigningKey, store accountstore.Store, clock quartz.Clock, log zerolog.Logger) *Pool {
	p := &Pool{
		seats:       seats,
		sk:          sk,
		store:       store,
		clock:       clock,
		log:         log.With().Str("component", "pool").Logger(),
		nextTableID: 1,
	}
	for i := 0; i < n; i++ {
		p.tables = append(p.tables, p.newTable(ctx))
	}
	return p
}

func (p *Pool) newTable(ctx context.Context) *table.Table {
	id := p.nextTableID
	p.nextTableID++

	rng := randutil.New(rand.Int64())
	t := table.New(id, p.seats, p.sk, p.store, p.clock, rng, tableLogger{log: p.log.With().Uint32("table_id", id).Logger()})
	go t.Run(ctx)
	return t
}

// tableLogger adapts zerolog.Logger to table.Logger.
type tableLogger struct{ log zerolog.Logger }

func (l tableLogger) Error(msg string, args ...any) {
	event := l.log.Error()
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		event = event.Interface(key, args[i+1])
	}
	event.Msg(msg)
}

// ErrNoOpenTable is returned by Join when every table is full or mid-hand.
var ErrNoOpenTable = fmt.Errorf("pool: no table has an open seat")

// Join seats peerID at the first table with room, returning the table and
// the channel its connection should forward outbound messages from.
func (p *Pool) Join(ctx context.Context, peerID protocol.PeerId, nickname string) (*table.Table, <-chan table.TableMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, t := range p.tables {
		messages, full, err := t.Join(ctx, peerID, nickname)
		if err != nil {
			continue
		}
		if full {
			p.tables = append(append(p.tables[:i:i], p.tables[i+1:]...), t)
		}
		return t, messages, nil
	}

	return nil, nil, ErrNoOpenTable
}

// TableCount returns the number of tables in the pool.
func (p *Pool) TableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tables)
}
