package pipeline

import (
	"testing"
	"time"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

func TestEventBusDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus(testLogger())

	var got []string
	bus.Subscribe(model.EventPipelineStarted, func(e model.UpdateEvent) {
		got = append(got, "first:"+e.PipelineID)
	})
	bus.Subscribe(model.EventPipelineStarted, func(e model.UpdateEvent) {
		got = append(got, "second:"+e.PipelineID)
	})
	bus.Subscribe(model.EventPipelineFailed, func(e model.UpdateEvent) {
		got = append(got, "wrong-type")
	})

	bus.Publish(model.UpdateEvent{Type: model.EventPipelineStarted, PipelineID: "addresses"})

	if len(got) != 2 || got[0] != "first:addresses" || got[1] != "second:addresses" {
		t.Errorf("deliveries = %v", got)
	}
}

func TestEventBusRecoversPanickingHandler(t *testing.T) {
	bus := NewEventBus(testLogger())

	var delivered bool
	bus.Subscribe(model.EventQuotaWarning, func(model.UpdateEvent) {
		panic("handler bug")
	})
	bus.Subscribe(model.EventQuotaWarning, func(model.UpdateEvent) {
		delivered = true
	})

	bus.Publish(model.UpdateEvent{Type: model.EventQuotaWarning, PipelineID: "dogPlaces"})

	if !delivered {
		t.Error("panicking handler blocked delivery to the next handler")
	}
}

func TestEventBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewEventBus(testLogger())
	// Must not panic or block.
	bus.Publish(model.UpdateEvent{Type: model.EventDataPersisted, Timestamp: time.Now()})
}

func TestEventBusStampsMissingTimestamp(t *testing.T) {
	bus := NewEventBus(testLogger())

	var got model.UpdateEvent
	bus.Subscribe(model.EventSourceConnected, func(e model.UpdateEvent) { got = e })
	bus.Publish(model.UpdateEvent{Type: model.EventSourceConnected})

	if got.Timestamp.IsZero() {
		t.Error("published event left with zero timestamp")
	}
}
