package feed

import (
	"sync/atomic"
	"testing"
)

func newTestClient(bufSize int) *Client {
	return NewClient(nil, bufSize)
}

var lem1 = MarketKey{Region: "de", Market: "lem", Name: "m1"}
var lem2 = MarketKey{Region: "de", Market: "lem", Name: "m2"}
var lem3 = MarketKey{Region: "de", Market: "lem", Name: "m3"}

func TestSubscribe(t *testing.T) {
	c := newTestClient(10)
	c.Subscribe([]MarketKey{lem1, lem2})
	if !c.IsSubscribed(lem1) {
		t.Fatal("should be subscribed to lem1")
	}
	if !c.IsSubscribed(lem2) {
		t.Fatal("should be subscribed to lem2")
	}
	if c.IsSubscribed(lem3) {
		t.Fatal("should not be subscribed to lem3")
	}
}

func TestSubscribeAll(t *testing.T) {
	c := newTestClient(10)
	c.SubscribeAll()
	if !c.IsSubscribed(lem1) || !c.IsSubscribed(lem3) {
		t.Fatal("should be subscribed to any market after SubscribeAll")
	}
}

func TestUnsubscribe(t *testing.T) {
	c := newTestClient(10)
	c.Subscribe([]MarketKey{lem1, lem2})
	c.Unsubscribe([]MarketKey{lem2})
	if c.IsSubscribed(lem2) {
		t.Fatal("should not be subscribed to lem2 after unsubscribe")
	}
	if !c.IsSubscribed(lem1) {
		t.Fatal("should still be subscribed to lem1")
	}
}

func TestSendBufferFull(t *testing.T) {
	c := newTestClient(2)
	ok1 := c.Send([]byte("msg1"))
	ok2 := c.Send([]byte("msg2"))
	ok3 := c.Send([]byte("msg3"))
	if !ok1 || !ok2 {
		t.Fatal("first two sends should succeed")
	}
	if ok3 {
		t.Fatal("third send should fail (buffer full)")
	}
	if dropped := atomic.LoadUint64(&c.Dropped); dropped != 1 {
		t.Fatalf("Dropped = %d, want 1", dropped)
	}
}

func TestSendNotFull(t *testing.T) {
	c := newTestClient(100)
	if !c.Send([]byte("hello")) {
		t.Fatal("Send should succeed with large buffer")
	}
	if dropped := atomic.LoadUint64(&c.Dropped); dropped != 0 {
		t.Fatalf("Dropped = %d, want 0", dropped)
	}
}

func TestUniqueIDs(t *testing.T) {
	atomic.StoreUint64(&clientIDCounter, 0)
	c1 := newTestClient(10)
	c2 := newTestClient(10)
	c3 := newTestClient(10)
	if c1.ID == c2.ID || c2.ID == c3.ID || c1.ID == c3.ID {
		t.Fatalf("client IDs should be unique: %d, %d, %d", c1.ID, c2.ID, c3.ID)
	}
}

func TestIsSubscribedDefault(t *testing.T) {
	c := newTestClient(10)
	if c.IsSubscribed(lem1) {
		t.Fatal("new client should not be subscribed to any market")
	}
}
