// Package audit durably records every MLFQ level transition, grounded on
// the teacher lineage's store/postgres.go: a pgxpool.Pool wrapped behind a
// narrow set of operations, using parameterized queries throughout.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/mlfq"
)

// Sink appends every transition it observes to a scheduler_transitions
// table. It is not on the hot path: OnTransition enqueues onto a bounded
// channel drained by a background writer, so a slow or unreachable
// database degrades audit completeness, never scheduling latency.
type Sink struct {
	pool    *pgxpool.Pool
	pending chan mlfq.Transition
	done    chan struct{}
}

// NewSink opens a connection pool to connString and creates the backing
// table if it does not already exist. queueLen bounds how many pending
// transitions may wait for the writer before OnTransition starts dropping
// them; the scheduler itself is never blocked by a slow database.
func NewSink(ctx context.Context, connString string, queueLen int) (*Sink, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 5
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS scheduler_transitions (
			id          BIGSERIAL PRIMARY KEY,
			task        BIGINT NOT NULL,
			old_level   TEXT NOT NULL,
			new_level   TEXT NOT NULL,
			prior_burst INTEGER NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}

	if queueLen <= 0 {
		queueLen = 256
	}
	s := &Sink{
		pool:    pool,
		pending: make(chan mlfq.Transition, queueLen),
		done:    make(chan struct{}),
	}
	go s.run(ctx)
	return s, nil
}

// Close stops the background writer and closes the pool. It waits for the
// writer to insert every transition still pending before the pool closes.
func (s *Sink) Close() {
	close(s.pending)
	<-s.done
	s.pool.Close()
}

func (s *Sink) run(ctx context.Context) {
	defer close(s.done)
	const insert = `
		INSERT INTO scheduler_transitions (task, old_level, new_level, prior_burst, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for t := range s.pending {
		_, err := s.pool.Exec(ctx, insert, uint64(t.Task), t.Old.String(), t.New.String(), t.PriorBurst, t.At)
		if err != nil {
			log.Printf("audit sink: insert failed: %v", err)
		}
	}
}

// OnTransition implements mlfq.Observer.
func (s *Sink) OnTransition(t mlfq.Transition, _ mlfq.Record) {
	select {
	case s.pending <- t:
	default:
		log.Printf("audit sink: queue full, dropping transition for task %d", t.Task)
	}
}

var _ mlfq.Observer = (*Sink)(nil)
