package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/syncable/syncable"
)

const signalChannel = "syncable:changes"

// ChangeEvent is the cross-node change signal. NodeID identifies the
// origin so a node can ignore its own echoes.
type ChangeEvent struct {
	NodeID       string                     `json:"nodeId"`
	DocumentID   string                     `json:"documentId"`
	DocumentName string                     `json:"documentName"`
	Changes      []syncable.ProcessedChange `json:"changes"`
}

// SignalService bridges processed changes between nodes over redis
// pub/sub. Optional: a nil *SignalService disables the bridge.
type SignalService struct {
	rdb    *redis.Client
	nodeID string
}

func NewSignalService(redisClient *redis.Client, nodeID string) *SignalService {
	return &SignalService{
		rdb:    redisClient,
		nodeID: nodeID,
	}
}

// Publish announces locally committed changes to the other nodes.
func (s *SignalService) Publish(ctx context.Context, ev ChangeEvent) error {
	if s == nil {
		return nil
	}
	ev.NodeID = s.nodeID

	jsonstr, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return s.rdb.Publish(ctx, signalChannel, jsonstr).Err()
}

// Listen consumes change events from the other nodes and hands them to
// handle. Events published by this node are skipped. Returns when ctx is
// done.
func (s *SignalService) Listen(ctx context.Context, handle func(context.Context, ChangeEvent)) {
	if s == nil {
		return
	}

	pubsub := s.rdb.Subscribe(ctx, signalChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.ErrorContext(
					ctx, "Malformed change event",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			if ev.NodeID == s.nodeID {
				continue
			}
			handle(ctx, ev)
		}
	}
}
