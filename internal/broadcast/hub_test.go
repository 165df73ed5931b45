package broadcast

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(opts ...Option) *Hub {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewHub(logrus.NewEntry(log), opts...)
}

func drain(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestPublishDeliversInOrder(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe("s1")

	for i := 0; i < 5; i++ {
		h.Publish("s1", Fragment{Text: fmt.Sprintf("frag-%d", i)})
	}

	evs := drain(sub)
	require.Len(t, evs, 5)
	for i, ev := range evs {
		assert.Equal(t, EventFragment, ev.Type)
		assert.Equal(t, uint64(i+1), ev.Fragment.Seq)
		assert.Equal(t, "s1", ev.Fragment.SessionID)
	}
}

func TestPublishWithNoSubscribersAdvancesSeq(t *testing.T) {
	h := newTestHub()

	assert.Equal(t, uint64(1), h.Publish("s1", Fragment{Text: "a"}))
	assert.Equal(t, uint64(2), h.Publish("s1", Fragment{Text: "b"}))

	// A late joiner sees a gap, never a duplicate.
	sub := h.Subscribe("s1")
	assert.Equal(t, uint64(3), h.Publish("s1", Fragment{Text: "c"}))

	evs := drain(sub)
	require.Len(t, evs, 1)
	assert.Equal(t, uint64(3), evs[0].Fragment.Seq)
}

func TestFanOutIndependence(t *testing.T) {
	// Subscriber B stops draining after 4 fragments; A and C must still get
	// all 10 in order.
	h := newTestHub(WithSubscriberBuffer(4))

	a := h.Subscribe("s1")
	b := h.Subscribe("s1")
	c := h.Subscribe("s1")

	var aGot, cGot []Event
	for i := 0; i < 10; i++ {
		h.Publish("s1", Fragment{Text: fmt.Sprintf("frag-%d", i)})
		// A and C keep up; B never reads, so its 4-slot buffer fills and it
		// gets pruned on the fifth publish.
		aGot = append(aGot, <-a.C)
		cGot = append(cGot, <-c.C)
	}

	require.Len(t, aGot, 10)
	require.Len(t, cGot, 10)
	for i := 0; i < 10; i++ {
		assert.Equal(t, uint64(i+1), aGot[i].Fragment.Seq)
		assert.Equal(t, uint64(i+1), cGot[i].Fragment.Seq)
	}

	// B was pruned: channel closed after its buffered 4.
	bGot := drain(b)
	assert.LessOrEqual(t, len(bGot), 4)
	_, open := <-b.C
	assert.False(t, open, "pruned subscriber channel must be closed")
}

func TestCloseTopicBroadcastsClosedMarker(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe("s1")

	h.Publish("s1", Fragment{Text: "a"})
	h.CloseTopic("s1")

	evs := drain(sub)
	require.Len(t, evs, 2)
	assert.Equal(t, EventFragment, evs[0].Type)
	assert.Equal(t, EventClosed, evs[1].Type)
	assert.Equal(t, uint64(1), evs[1].Fragment.Seq)

	assert.Equal(t, 0, h.Topics())

	// Publishing after close starts a fresh topic only if someone re-creates
	// it; the old subscription stays closed either way.
	_, open := <-sub.C
	assert.False(t, open)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe("s1")

	h.Unsubscribe(sub)
	h.Unsubscribe(sub) // second call must not panic
	sub.Close()

	// Remaining subscribers unaffected.
	other := h.Subscribe("s1")
	h.Publish("s1", Fragment{Text: "a"})
	evs := drain(other)
	require.Len(t, evs, 1)
}

func TestTopicsAreIndependent(t *testing.T) {
	h := newTestHub()
	s1 := h.Subscribe("s1")
	s2 := h.Subscribe("s2")

	h.Publish("s1", Fragment{Text: "one"})
	h.Publish("s2", Fragment{Text: "two"})
	h.Publish("s2", Fragment{Text: "three"})

	evs1 := drain(s1)
	evs2 := drain(s2)
	require.Len(t, evs1, 1)
	require.Len(t, evs2, 2)
	// Sequence counters are per topic.
	assert.Equal(t, uint64(1), evs1[0].Fragment.Seq)
	assert.Equal(t, uint64(1), evs2[0].Fragment.Seq)
	assert.Equal(t, uint64(2), evs2[1].Fragment.Seq)
}

func TestCloseTopicUnknownSessionIsNoop(t *testing.T) {
	h := newTestHub()
	h.CloseTopic("missing") // must not panic
	assert.Equal(t, 0, h.Topics())
}
