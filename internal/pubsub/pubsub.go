// Package pubsub implements a simple one-to-many broadcast primitive
// used to fan chain-runtime notifications out to every subscriber
// without a slow subscriber ever blocking the broadcaster.
package pubsub

import (
	"reflect"
	"sync"

	"github.com/eapache/channels"
)

// Subscription is a single subscriber's view of a Broker. Closing it
// detaches the subscriber; the Broker stops delivering to it
// immediately.
type Subscription struct {
	broker *Broker
	ch     *channels.InfiniteChannel
	id     uint64

	closeOnce sync.Once
}

// Unwrap starts a goroutine that copies values off the subscription's
// untyped inbox onto dstCh, a directional or bidirectional typed
// channel (e.g. `chan *FooEvent`). The goroutine exits, closing dstCh,
// once the subscription is closed and drained.
func (s *Subscription) Unwrap(dstCh interface{}) {
	dst := reflect.ValueOf(dstCh)
	go func() {
		defer dst.Close()
		for v := range s.ch.Out() {
			dst.Send(reflect.ValueOf(v))
		}
	}()
}

// Close detaches the subscription from its Broker.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.broker.unsubscribe(s.id)
		s.ch.Close()
	})
}

// Broker is a single-producer, multi-consumer fan-out broadcaster.
type Broker struct {
	sync.Mutex

	subscribers map[uint64]*channels.InfiniteChannel
	nextID      uint64

	replayLast  bool
	haveLast    bool
	last        interface{}
	onSubscribe func(*channels.InfiniteChannel)
}

// NewBroker constructs a Broker. If replayLast is true, the most
// recently Broadcast value is replayed to each new Subscription.
func NewBroker(replayLast bool) *Broker {
	return &Broker{
		subscribers: make(map[uint64]*channels.InfiniteChannel),
		replayLast:  replayLast,
	}
}

// NewBrokerEx constructs a Broker whose onSubscribe hook runs for
// every new Subscription, useful for replaying an entire current-state
// snapshot (rather than just the last broadcast value) to late joiners.
func NewBrokerEx(onSubscribe func(*channels.InfiniteChannel)) *Broker {
	return &Broker{
		subscribers: make(map[uint64]*channels.InfiniteChannel),
		onSubscribe: onSubscribe,
	}
}

// Subscribe registers a new subscriber and returns its Subscription.
func (b *Broker) Subscribe() *Subscription {
	b.Lock()
	defer b.Unlock()

	id := b.nextID
	b.nextID++

	ch := channels.NewInfiniteChannel()
	b.subscribers[id] = ch

	if b.replayLast && b.haveLast {
		ch.In() <- b.last
	}
	if b.onSubscribe != nil {
		b.onSubscribe(ch)
	}

	return &Subscription{broker: b, ch: ch, id: id}
}

func (b *Broker) unsubscribe(id uint64) {
	b.Lock()
	defer b.Unlock()
	delete(b.subscribers, id)
}

// Broadcast delivers v to every current subscriber's unbounded inbox.
// It never blocks the caller.
func (b *Broker) Broadcast(v interface{}) {
	b.Lock()
	defer b.Unlock()

	if b.replayLast {
		b.last = v
		b.haveLast = true
	}

	for _, ch := range b.subscribers {
		ch.In() <- v
	}
}

// NumSubscribers reports the number of currently live subscriptions.
func (b *Broker) NumSubscribers() int {
	b.Lock()
	defer b.Unlock()
	return len(b.subscribers)
}
