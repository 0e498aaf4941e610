package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/syncable/syncable"
)

func newTestSignal(t *testing.T, nodeID string) (*SignalService, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewSignalService(rdb, nodeID), rdb
}

func TestSignalPublishReceive(t *testing.T) {
	mr := miniredis.RunT(t)
	optsA := &redis.Options{Addr: mr.Addr()}
	rdbA := redis.NewClient(optsA)
	rdbB := redis.NewClient(optsA)
	defer rdbA.Close()
	defer rdbB.Close()

	nodeA := NewSignalService(rdbA, "node-a")
	nodeB := NewSignalService(rdbB, "node-b")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan ChangeEvent, 1)
	ready := make(chan struct{})
	go func() {
		close(ready)
		nodeB.Listen(ctx, func(_ context.Context, ev ChangeEvent) {
			received <- ev
		})
	}()
	<-ready
	// give the subscriber a moment to attach
	time.Sleep(50 * time.Millisecond)

	ev := ChangeEvent{
		DocumentID:   "d1",
		DocumentName: "doc",
		Changes: []syncable.ProcessedChange{{
			Change:   syncable.Change{Ops: syncable.ChangeOps{{Ptr: "/x", Op: syncable.SetOp{Value: float64(1)}}}},
			ChangeID: "c1",
			ChangeAt: 1,
			ChangeBy: "ua",
		}},
	}
	if err := nodeA.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-received:
		if got.NodeID != "node-a" || got.DocumentName != "doc" || len(got.Changes) != 1 {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestSignalSkipsOwnEvents(t *testing.T) {
	svc, _ := newTestSignal(t, "node-a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan ChangeEvent, 1)
	go svc.Listen(ctx, func(_ context.Context, ev ChangeEvent) {
		received <- ev
	})
	time.Sleep(50 * time.Millisecond)

	if err := svc.Publish(ctx, ChangeEvent{DocumentID: "d1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-received:
		t.Fatalf("received own event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSignalNilService(t *testing.T) {
	var svc *SignalService
	if err := svc.Publish(context.Background(), ChangeEvent{}); err != nil {
		t.Fatalf("nil publish: %v", err)
	}
	svc.Listen(context.Background(), func(context.Context, ChangeEvent) {
		t.Fatalf("nil listen invoked handler")
	})
}
