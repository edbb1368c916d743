package progressbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/caseflow/internal/model"
)

func TestPublishNoSubscribersIsNoop(t *testing.T) {
	bus := New()
	bus.Publish(model.ProgressEvent{CaseID: "case-1", Kind: model.EventDocumentUpload})
	assert.Equal(t, 0, bus.SubscriberCount("case-1"))
}

func TestSubscribeReceivesInOrder(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("case-1")
	defer sub.Unsubscribe()

	kinds := []model.EventKind{
		model.EventDocumentExtracting,
		model.EventDocumentAnalyzing,
		model.EventDocumentIndexing,
		model.EventDocumentComplete,
	}
	for _, k := range kinds {
		bus.Publish(model.ProgressEvent{CaseID: "case-1", DocumentID: "doc-1", Kind: k})
	}

	for _, want := range kinds {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, want, ev.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %s", want)
		}
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("case-1")
	sub.Unsubscribe()
	assert.NotPanics(t, func() { sub.Unsubscribe() })
}

func TestSlowSubscriberDroppedNotOthers(t *testing.T) {
	bus := New()
	slow := bus.Subscribe("case-1")
	defer slow.Unsubscribe()
	fast := bus.Subscribe("case-1")
	defer fast.Unsubscribe()

	for i := 0; i < subscriberQueueSize; i++ {
		bus.Publish(model.ProgressEvent{CaseID: "case-1", Kind: model.EventDocumentAnalyzing})
	}
	// The fast subscriber keeps up: it drains everything sent so far.
	for i := 0; i < subscriberQueueSize; i++ {
		<-fast.Events()
	}
	for i := 0; i < 10; i++ {
		bus.Publish(model.ProgressEvent{CaseID: "case-1", Kind: model.EventDocumentAnalyzing})
	}

	// Slow subscriber never drained -> it was dropped once its queue was
	// full. Its channel still hands out the events already queued, then
	// reports closed.
	for i := 0; i < subscriberQueueSize; i++ {
		<-slow.Events()
	}
	_, stillOpen := <-slow.Events()
	require.False(t, stillOpen, "slow subscriber's channel should be closed after being dropped")

	assert.Equal(t, 1, bus.SubscriberCount("case-1"), "only the slow subscriber is dropped")
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := bus.Subscribe("case-1")
			defer sub.Unsubscribe()
			for {
				select {
				case _, ok := <-sub.Events():
					if !ok {
						return
					}
				case <-time.After(50 * time.Millisecond):
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		bus.Publish(model.ProgressEvent{CaseID: "case-1", Kind: model.EventDocumentAnalyzing})
	}

	wg.Wait()
}
