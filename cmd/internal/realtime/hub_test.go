package realtime

import (
	"testing"

	v1 "counsel/shared/contracts/realtime/v1"

	"github.com/stretchr/testify/assert"
)

func TestHub_JoinBroadcastLeave(t *testing.T) {
	h := NewHub()
	a := NewClient("a", "", 4)
	b := NewClient("b", "", 4)

	h.Join("k", a)
	h.Join("k", b)
	h.Join("other", a)
	assert.Equal(t, 2, h.Members("k"))
	assert.Equal(t, []string{"k", "other"}, a.Rooms())

	delivered, dropped := h.Broadcast("k", v1.Envelope{Type: "x"})
	assert.Equal(t, 2, delivered)
	assert.Zero(t, dropped)
	assert.Len(t, a.Send, 1)
	assert.Len(t, b.Send, 1)

	h.Leave("k", "a")
	h.Leave("k", "b")
	assert.Zero(t, h.Members("k"))
	assert.Equal(t, 1, h.Len(), "empty rooms are removed")

	delivered, dropped = h.Broadcast("k", v1.Envelope{Type: "x"})
	assert.Zero(t, delivered)
	assert.Zero(t, dropped)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := NewHub()
	slow := NewClient("slow", "", 1)
	closed := NewClient("closed", "", 1)
	closed.Close()

	h.Join("k", slow)
	h.Join("k", closed)

	h.Broadcast("k", v1.Envelope{Type: "x"})
	delivered, dropped := h.Broadcast("k", v1.Envelope{Type: "y"})

	assert.Zero(t, delivered)
	assert.Equal(t, 1, dropped, "closed clients are skipped, full queues are dropped")
	assert.Len(t, closed.Send, 0)
}
