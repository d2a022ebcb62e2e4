package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionalBus_FlushDeliversAfterCommit(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	received := make(chan GiveawayResolvedEvent, 1)
	mainBus.Subscribe(EventTypeGiveawayResolved, func(ctx context.Context, event Event) {
		if resolved, ok := event.(GiveawayResolvedEvent); ok {
			received <- resolved
		}
	})

	transactionalBus.Publish(GiveawayResolvedEvent{
		ChannelID: 1,
		MessageID: 2,
		Prize:     "Nitro",
		Winners:   []int64{10, 11},
	})

	// Nothing is delivered before the flush
	select {
	case <-received:
		t.Fatal("event delivered before flush")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, transactionalBus.Pending())

	require.NoError(t, transactionalBus.Flush(context.Background()))
	assert.Equal(t, 0, transactionalBus.Pending())

	select {
	case ev := <-received:
		assert.Equal(t, int64(2), ev.MessageID)
		assert.Equal(t, []int64{10, 11}, ev.Winners)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered after flush")
	}
}

func TestTransactionalBus_DiscardDropsEvents(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	called := make(chan struct{}, 1)
	mainBus.Subscribe(EventTypeGiveawayDeleted, func(ctx context.Context, event Event) {
		called <- struct{}{}
	})

	transactionalBus.Publish(GiveawayDeletedEvent{ChannelID: 1, MessageID: 2})
	transactionalBus.Discard()
	require.NoError(t, transactionalBus.Flush(context.Background()))

	select {
	case <-called:
		t.Fatal("discarded event was delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_SubscribeAllAndPanicRecovery(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	wg.Add(2)

	bus.Subscribe(EventTypeReactRoleBound, func(ctx context.Context, event Event) {
		defer wg.Done()
		panic("boom")
	})

	var mu sync.Mutex
	var seen []EventType
	bus.SubscribeAll(func(ctx context.Context, event Event) {
		defer wg.Done()
		mu.Lock()
		seen = append(seen, event.Type())
		mu.Unlock()
	})

	bus.Emit(context.Background(), ReactRoleBoundEvent{ChannelID: 1, MessageID: 2, Emoji: "✅", RoleID: 3})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventTypeReactRoleBound}, seen)
}
