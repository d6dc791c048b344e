package inventory

import (
	"sort"
	"strings"
	"testing"
)

func TestNormalizeSortsAndMerges(t *testing.T) {
	lines := []Line{
		{ProductID: "c", Qty: 1},
		{ProductID: "a", Qty: 2},
		{ProductID: "c", Qty: 4},
		{ProductID: "b", Qty: 3},
	}
	got := normalize(lines)

	if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i].ProductID < got[j].ProductID }) {
		t.Errorf("lines not sorted by product id: %+v", got)
	}
	if len(got) != 3 {
		t.Fatalf("duplicates not merged: %+v", got)
	}
	for _, ln := range got {
		if ln.ProductID == "c" && ln.Qty != 5 {
			t.Errorf("duplicate quantities not summed: %+v", ln)
		}
	}
}

func TestErrorsNameTheProduct(t *testing.T) {
	short := InsufficientStockError{ProductID: "prod-a", Requested: 5, Available: 2}
	if !strings.Contains(short.Error(), "prod-a") {
		t.Errorf("insufficient-stock error does not name the product: %s", short.Error())
	}
	missing := ProductNotFoundError{ProductID: "prod-b"}
	if !strings.Contains(missing.Error(), "prod-b") {
		t.Errorf("not-found error does not name the product: %s", missing.Error())
	}
}
