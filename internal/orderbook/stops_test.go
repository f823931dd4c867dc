package orderbook

import (
	"testing"
)

func stopOrder(id string, side Side, trigger int64, seq uint64) *Order {
	return &Order{
		ID:           id,
		Side:         side,
		Type:         StopMarket,
		TriggerPrice: trigger,
		Quantity:     5,
		Seq:          seq,
	}
}

func TestRegisterSetsPendingTrigger(t *testing.T) {
	stops := NewStopBook()

	order := stopOrder("stop1", Sell, 9500, 1)
	stops.Register(order)

	if order.Status != PendingTrigger {
		t.Errorf("expected pending_trigger, got %s", order.Status)
	}
	if stops.Len() != 1 {
		t.Errorf("expected 1 pending order, got %d", stops.Len())
	}
	if _, ok := stops.Get("stop1"); !ok {
		t.Error("expected lookup to find the pending order")
	}
}

func TestTriggerConditions(t *testing.T) {
	stops := NewStopBook()

	// Sell stop fires when the price falls to or below the trigger.
	stops.Register(stopOrder("sellstop", Sell, 9500, 1))
	if fired := stops.Triggered(9600); len(fired) != 0 {
		t.Errorf("sell stop fired above trigger: %v", fired)
	}
	if fired := stops.Triggered(9500); len(fired) != 1 || fired[0].ID != "sellstop" {
		t.Errorf("expected sell stop to fire at trigger, got %v", fired)
	}

	// Buy stop fires when the price rises to or above the trigger.
	stops.Register(stopOrder("buystop", Buy, 10500, 2))
	if fired := stops.Triggered(10400); len(fired) != 0 {
		t.Errorf("buy stop fired below trigger: %v", fired)
	}
	if fired := stops.Triggered(10600); len(fired) != 1 || fired[0].ID != "buystop" {
		t.Errorf("expected buy stop to fire above trigger, got %v", fired)
	}

	if stops.Len() != 0 {
		t.Errorf("expected fired orders removed, %d left", stops.Len())
	}
}

func TestTriggeredKeepsRegistrationOrder(t *testing.T) {
	stops := NewStopBook()

	// Registered in this order; trigger prices deliberately inverted.
	stops.Register(stopOrder("first", Sell, 9400, 1))
	stops.Register(stopOrder("second", Sell, 9600, 2))
	stops.Register(stopOrder("third", Sell, 9500, 3))

	fired := stops.Triggered(9300)
	if len(fired) != 3 {
		t.Fatalf("expected all 3 to fire, got %d", len(fired))
	}
	if fired[0].ID != "first" || fired[1].ID != "second" || fired[2].ID != "third" {
		t.Errorf("expected registration order, got [%s %s %s]", fired[0].ID, fired[1].ID, fired[2].ID)
	}
}

func TestPartialTriggerLeavesRest(t *testing.T) {
	stops := NewStopBook()

	stops.Register(stopOrder("near", Sell, 9500, 1))
	stops.Register(stopOrder("far", Sell, 9000, 2))

	fired := stops.Triggered(9400)
	if len(fired) != 1 || fired[0].ID != "near" {
		t.Fatalf("expected only 'near' to fire, got %v", fired)
	}
	pending := stops.Pending()
	if len(pending) != 1 || pending[0].ID != "far" {
		t.Errorf("expected 'far' still pending, got %v", pending)
	}
}

func TestCancelPending(t *testing.T) {
	stops := NewStopBook()

	stops.Register(stopOrder("stop1", Buy, 10500, 1))

	order, err := stops.Cancel("stop1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != "stop1" {
		t.Errorf("expected canceled order 'stop1', got %s", order.ID)
	}
	if stops.Len() != 0 {
		t.Error("expected empty stop book after cancel")
	}

	if _, err := stops.Cancel("stop1"); err == nil {
		t.Error("expected error canceling unknown order")
	}
}
