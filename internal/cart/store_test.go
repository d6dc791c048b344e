package cart

import (
	"testing"

	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
)

func line(id string, qty int) orders.CartItem {
	return orders.CartItem{ProductID: id, Quantity: qty}
}

func TestUpsertLine(t *testing.T) {
	items := upsertLine(nil, "a", 2)
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("append: %+v", items)
	}

	items = upsertLine(items, "a", 3)
	if len(items) != 1 || items[0].Quantity != 5 {
		t.Errorf("merge: %+v", items)
	}

	items = upsertLine(items, "b", 1)
	if len(items) != 2 {
		t.Errorf("second line: %+v", items)
	}

	// A negative delta that empties the line removes it.
	items = upsertLine(items, "a", -5)
	if len(items) != 1 || items[0].ProductID != "b" {
		t.Errorf("remove via delta: %+v", items)
	}

	// Negative delta for an absent line is a no-op.
	items = upsertLine(items, "zzz", -1)
	if len(items) != 1 {
		t.Errorf("phantom line added: %+v", items)
	}
}

func TestSetLine(t *testing.T) {
	items := []orders.CartItem{line("a", 2), line("b", 1)}

	items = setLine(items, "a", 7)
	if items[0].Quantity != 7 {
		t.Errorf("set: %+v", items)
	}

	items = setLine(items, "b", 0)
	if len(items) != 1 || items[0].ProductID != "a" {
		t.Errorf("zero removes line: %+v", items)
	}

	items = setLine(items, "c", 3)
	if len(items) != 2 {
		t.Errorf("set on absent line appends: %+v", items)
	}

	items = setLine(items, "absent", -1)
	if len(items) != 2 {
		t.Errorf("negative set on absent line added a line: %+v", items)
	}
}
