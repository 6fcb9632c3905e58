package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hamlet-sim/lem-engine/internal/clearing"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

func TestBroadcastOnlyReachesSubscribedClients(t *testing.T) {
	m := NewManager(10)

	subscribed := NewClient(nil, 10)
	subscribed.Subscribe([]MarketKey{lem1})
	other := NewClient(nil, 10)
	other.Subscribe([]MarketKey{lem2})
	all := NewClient(nil, 10)
	all.SubscribeAll()

	m.clients[subscribed.ID] = subscribed
	m.clients[other.ID] = other
	m.clients[all.ID] = all

	row := timetable.Row{Region: "de", Market: "lem", Name: "m1", Timestamp: time.Now(), Timestep: time.Now()}
	m.Broadcast(row, clearing.Result{})

	select {
	case <-subscribed.SendCh():
	default:
		t.Fatal("subscribed client should have received the broadcast")
	}
	select {
	case <-other.SendCh():
		t.Fatal("non-subscribed client should not have received the broadcast")
	default:
	}
	select {
	case <-all.SendCh():
	default:
		t.Fatal("all-subscribed client should have received the broadcast")
	}
}

func TestBroadcastEncodesStepEvent(t *testing.T) {
	m := NewManager(10)
	c := NewClient(nil, 10)
	c.SubscribeAll()
	m.clients[c.ID] = c

	row := timetable.Row{
		Region: "de", Market: "lem", Name: "m1",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Timestep:  time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
		Actions:   []timetable.Action{timetable.ActionClear},
	}
	result := clearing.Result{ClearedBids: []clearing.ClearedBid{{IDAgentIn: "a1", EnergyIn: 5}}}
	m.Broadcast(row, result)

	data := <-c.SendCh()
	var got StepEvent
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "m1" || len(got.Result.ClearedBids) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestClientCount(t *testing.T) {
	m := NewManager(10)
	if m.ClientCount() != 0 {
		t.Fatalf("got %d, want 0", m.ClientCount())
	}
	c := NewClient(nil, 10)
	m.clients[c.ID] = c
	if m.ClientCount() != 1 {
		t.Fatalf("got %d, want 1", m.ClientCount())
	}
}
