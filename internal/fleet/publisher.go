// Package fleet periodically publishes this board's scheduler occupancy to
// a Redis channel so a multi-board fleet viewer can subscribe across
// boards, grounded on the teacher lineage's store/redis.go client setup.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/mlfq"
)

// snapshotPayload is the JSON document published on every tick.
type snapshotPayload struct {
	Board     string         `json:"board"`
	Occupancy map[string]int `json:"occupancy"`
	AtUnixMS  int64          `json:"at_unix_ms"`
}

// Publisher periodically PUBLISHes a snapshot of per-level occupancy to a
// Redis channel.
type Publisher struct {
	client   *redis.Client
	channel  string
	board    string
	snapshot func() map[mlfq.Level]int
}

// NewPublisher connects to addr and returns a Publisher ready to Run.
func NewPublisher(ctx context.Context, addr, password string, db int, channel, board string, snapshot func() map[mlfq.Level]int) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("fleet publisher: connect: %w", err)
	}

	return &Publisher{client: client, channel: channel, board: board, snapshot: snapshot}, nil
}

// Close releases the underlying Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Run publishes a snapshot every interval until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce(ctx)
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) {
	counts := p.snapshot()
	occ := make(map[string]int, len(counts))
	for level, n := range counts {
		occ[level.String()] = n
	}
	payload := snapshotPayload{
		Board:     p.board,
		Occupancy: occ,
		AtUnixMS:  time.Now().UnixMilli(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("fleet publisher: marshal: %v", err)
		return
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		log.Printf("fleet publisher: publish: %v", err)
	}
}
