package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const notifyChannel = "document_changes"

// Event is the payload emitted by the per-table notify triggers.
type Event struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Op         string `json:"op"`
}

// SnapshotFunc receives a fresh query result whenever a document in the
// watched collection changes. A non-nil error means the re-read failed; the
// subscription stays active.
type SnapshotFunc func(docs []Document, err error)

type queryFunc func(ctx context.Context, q Query) ([]Document, error)

type subscription struct {
	key   string
	query Query
	fn    SnapshotFunc
}

// Watcher delivers live query results over Postgres LISTEN/NOTIFY. One
// listener connection fans out to all subscriptions. At most one subscription
// exists per canonical query shape; subscribing again with an equivalent
// query replaces the earlier registration.
type Watcher struct {
	query    queryFunc
	listener *pq.Listener
	log      *zap.Logger

	mu   sync.Mutex
	subs map[string]*subscription

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher opens a listener connection and starts the dispatch loop. The
// DSN must point at the same database as the store.
func NewWatcher(dsn string, store *Store, log *zap.Logger) (*Watcher, error) {
	listener := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("store listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		query:    store.Query,
		listener: listener,
		log:      log,
		subs:     make(map[string]*subscription),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

// Subscribe registers a live query. The callback receives an initial snapshot
// immediately and a fresh result after every change in the collection. A
// second Subscribe with an equivalent query cancels the first; the stale
// disposer then becomes a no-op. The returned function cancels the
// subscription and must be called to avoid leaking it.
func (w *Watcher) Subscribe(q Query, fn SnapshotFunc) func() {
	sub := &subscription{key: canonicalKey(q), query: q, fn: fn}
	w.mu.Lock()
	w.subs[sub.key] = sub
	w.mu.Unlock()

	go w.deliver(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			if w.subs[sub.key] == sub {
				delete(w.subs, sub.key)
			}
			w.mu.Unlock()
		})
	}
}

// Close stops the dispatch loop and drops the listener connection.
func (w *Watcher) Close() error {
	w.cancel()
	<-w.done
	return w.listener.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-w.listener.Notify:
			if n == nil {
				// Reconnect; every subscription may have missed events.
				w.refreshAll("")
				continue
			}
			var ev Event
			if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
				w.log.Warn("store notify payload", zap.Error(err))
				continue
			}
			w.refreshAll(ev.Collection)
		case <-ping.C:
			if err := w.listener.Ping(); err != nil {
				w.log.Warn("store listener ping", zap.Error(err))
			}
		}
	}
}

// refreshAll re-runs every subscription matching the collection. An empty
// collection refreshes everything.
func (w *Watcher) refreshAll(collection string) {
	w.mu.Lock()
	matched := make([]*subscription, 0, len(w.subs))
	for _, sub := range w.subs {
		if collection == "" || sub.query.Collection == collection {
			matched = append(matched, sub)
		}
	}
	w.mu.Unlock()

	for _, sub := range matched {
		go w.deliver(sub)
	}
}

func (w *Watcher) deliver(sub *subscription) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	docs, err := w.query(ctx, sub.query)
	sub.fn(docs, err)
}

// canonicalKey serializes a query so equivalent shapes collide regardless of
// filter order.
func canonicalKey(q Query) string {
	filters := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		op := f.Op
		if op == "" {
			op = "=="
		}
		filters = append(filters, fmt.Sprintf("%s%s%v", f.Field, op, f.Value))
	}
	sort.Strings(filters)
	return fmt.Sprintf("%s|%s|ob=%s,desc=%t|n=%d|c=%s",
		q.Collection, strings.Join(filters, ","), q.OrderBy, q.OrderDesc, q.Limit, q.Cursor)
}
