package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"geminimcp/internal/log"
)

func TestSweeperPurgesExpired(t *testing.T) {
	s := newTestStore(t, 50*time.Millisecond, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := s.CreateThread(ctx, "sweep me", "chat")
	if err != nil {
		t.Fatalf("creating thread: %v", err)
	}

	sweeper := NewSweeper(s, 30*time.Millisecond, log.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	// Wait past the TTL plus at least one tick.
	deadline := time.After(2 * time.Second)
	for {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM conversations WHERE id = ?", id).Scan(&count); err != nil {
			t.Fatalf("counting: %v", err)
		}
		if count == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper never purged the expired thread")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	wg.Wait()
}

func TestSweeperStopsOnCancel(t *testing.T) {
	s := newTestStore(t, time.Hour, 50)
	ctx, cancel := context.WithCancel(context.Background())

	sweeper := NewSweeper(s, 10*time.Millisecond, log.NewNop())

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
