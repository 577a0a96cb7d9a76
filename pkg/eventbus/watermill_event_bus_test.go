package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/channels/gochannel"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/events"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
)

// Record events travel on their own topic, engine messages on the execution
// topic; one bus subscription covers both.
func TestWatermillEventBus_RoutesEventsByTopic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	recordEvents := make(chan *events.RecordEventReceived, 1)
	stepEvents := make(chan *events.ExecutionStepAvailable, 1)

	require.NoError(t, bus.Handle(events.RecordEventReceivedEvent, func(_ context.Context, event any) error {
		received, ok := event.(*events.RecordEventReceived)
		require.True(t, ok)
		recordEvents <- received

		return nil
	}))
	require.NoError(t, bus.Handle(events.ExecutionStepAvailableEvent, func(_ context.Context, event any) error {
		available, ok := event.(*events.ExecutionStepAvailable)
		require.True(t, ok)
		stepEvents <- available

		return nil
	}))

	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "tenant-1", events.RecordEventReceived{
		BaseEvent: events.NewBaseEvent(events.RecordEventReceivedEvent, ""),
		Event: models.RecordEvent{
			EventType:  "booking.created",
			RecordID:   "owner-1",
			RecordType: "owners",
			TenantID:   "tenant-1",
		},
	}))
	require.NoError(t, bus.Publish(ctx, "exec-1", events.ExecutionStepAvailable{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStepAvailableEvent, "wf-1"),
		ExecutionID: "exec-1",
		StepID:      "s1",
	}))

	select {
	case received := <-recordEvents:
		assert.Equal(t, "booking.created", received.Event.EventType)
		assert.Equal(t, "owner-1", received.Event.RecordID)
	case <-time.After(5 * time.Second):
		t.Fatal("record event never delivered")
	}

	select {
	case available := <-stepEvents:
		assert.Equal(t, "exec-1", available.ExecutionID)
		assert.Equal(t, "s1", available.StepID)
	case <-time.After(5 * time.Second):
		t.Fatal("step event never delivered")
	}
}
