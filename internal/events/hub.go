package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tillpoint/api/internal/ws"
)

// HubPublisher bridges order events onto the in-process websocket hub,
// fanning out to the tenant's kitchen-display subscribers.
type HubPublisher struct {
	hub *ws.Hub
}

func NewHubPublisher(hub *ws.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(ctx context.Context, evt OrderEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	p.hub.BroadcastToTenant(evt.TenantID, ws.Event{
		Type:    evt.EventType,
		Payload: payload,
	})
	return nil
}

func (p *HubPublisher) Close() error { return nil }

// Fanout publishes to every sink, fire-and-forget per sink: one slow or
// failing subscriber never blocks or cancels the others.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt OrderEvent) error {
	var firstErr error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f Fanout) Close() error {
	var firstErr error
	for _, p := range f {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
