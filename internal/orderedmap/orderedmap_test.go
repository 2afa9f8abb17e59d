package orderedmap

import (
	"reflect"
	"testing"
)

func TestSetKeepsFirstInsertionOrder(t *testing.T) {
	m := NewOrderedMap[string, int]()
	m.Set("b", 1)
	m.Set("a", 2)
	m.Set("b", 3)

	if got, want := m.Values(), []int{3, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
}

func TestGetHas(t *testing.T) {
	m := NewOrderedMap[string, int]()
	m.Set("x", 1)

	if v, ok := m.Get("x"); !ok || v != 1 {
		t.Fatalf("Get(x) = %d, %v", v, ok)
	}
	if _, ok := m.Get("y"); ok {
		t.Fatalf("Get(y) found a missing key")
	}
	if !m.Has("x") || m.Has("y") {
		t.Fatalf("Has(x), Has(y) = %v, %v", m.Has("x"), m.Has("y"))
	}
}

func TestValuesReturnsCopy(t *testing.T) {
	m := NewOrderedMap[int, int]()
	m.Set(1, 1)
	values := m.Values()
	values[0] = 42
	if m.Values()[0] != 1 {
		t.Fatalf("Values() aliases internal storage")
	}
}
