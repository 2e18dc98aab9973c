package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
}

func (c *fakeClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false
	}
	c.messages = append(c.messages, message)
	return true
}

func (c *fakeClient) Close() {}

func (c *fakeClient) events(t *testing.T) []Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, 0, len(c.messages))
	for _, m := range c.messages {
		var e Event
		require.NoError(t, json.Unmarshal(m, &e))
		out = append(out, e)
	}
	return out
}

func TestPublishRoutesByClient(t *testing.T) {
	hub := NewHub(nil)
	staff, acme, other := &fakeClient{}, &fakeClient{}, &fakeClient{}
	hub.Register(StaffChannel, staff)
	hub.Register("recAcme", acme)
	hub.Register("recOther", other)

	hub.Publish(Event{Type: "status_changed", Resource: "tasks", RecordID: "recT1", Status: "Done", ClientIDs: []string{"recAcme", "recAcme"}})

	require.Len(t, staff.events(t), 1)
	got := acme.events(t)
	require.Len(t, got, 1)
	require.Equal(t, "recT1", got[0].RecordID)
	require.False(t, got[0].At.IsZero())
	require.Empty(t, other.events(t))
}

func TestPublishIgnoresStaffChannelAsClientID(t *testing.T) {
	hub := NewHub(nil)
	staff := &fakeClient{}
	hub.Register(StaffChannel, staff)

	hub.Publish(Event{Type: "comment_added", ClientIDs: []string{StaffChannel}})
	require.Len(t, staff.events(t), 1)
}

func TestUnregisterCleansUp(t *testing.T) {
	hub := NewHub(nil)
	c := &fakeClient{}
	hub.Register("recAcme", c)
	require.Equal(t, 1, hub.Subscribers("recAcme"))

	hub.Unregister("recAcme", c)
	require.Zero(t, hub.Subscribers("recAcme"))
	hub.Unregister("recAcme", c)

	hub.Publish(Event{Type: "status_changed", ClientIDs: []string{"recAcme"}})
	require.Empty(t, c.events(t))
}

func TestBroadcastSurvivesFailingClient(t *testing.T) {
	hub := NewHub(nil)
	broken, healthy := &fakeClient{fail: true}, &fakeClient{}
	hub.Register("recAcme", broken)
	hub.Register("recAcme", healthy)

	hub.Broadcast("recAcme", []byte(`{"type":"ping"}`))
	require.Len(t, healthy.events(t), 1)
}
