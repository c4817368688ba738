// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package syncx

import (
	"sort"
	"sync"
	"testing"
)

func TestMapLoadStore(t *testing.T) {
	m := &Map[string, int]{}

	m.Store("alpha", 1)

	value, ok := m.Load("alpha")
	if !ok {
		t.Error("Expected alpha to exist")
	}
	if value != 1 {
		t.Errorf("Expected value 1, got %d", value)
	}

	value, ok = m.Load("missing")
	if ok {
		t.Error("Expected missing key to not exist")
	}
	if value != 0 {
		t.Errorf("Expected zero value, got %d", value)
	}
}

func TestMapLoadOrStore(t *testing.T) {
	m := &Map[string, int]{}

	actual, loaded := m.LoadOrStore("alpha", 1)
	if loaded {
		t.Error("Expected first LoadOrStore to store")
	}
	if actual != 1 {
		t.Errorf("Expected stored value 1, got %d", actual)
	}

	actual, loaded = m.LoadOrStore("alpha", 2)
	if !loaded {
		t.Error("Expected second LoadOrStore to load")
	}
	if actual != 1 {
		t.Errorf("Expected existing value 1, got %d", actual)
	}
}

func TestMapLoadAndDelete(t *testing.T) {
	m := &Map[string, int]{}

	m.Store("alpha", 1)

	value, loaded := m.LoadAndDelete("alpha")
	if !loaded {
		t.Error("Expected alpha to be loaded")
	}
	if value != 1 {
		t.Errorf("Expected value 1, got %d", value)
	}

	if _, ok := m.Load("alpha"); ok {
		t.Error("Expected alpha to be deleted")
	}

	if _, loaded := m.LoadAndDelete("missing"); loaded {
		t.Error("Expected missing key to not be loaded")
	}
}

func TestMapRange(t *testing.T) {
	m := &Map[string, int]{}
	m.Store("a", 1)
	m.Store("b", 2)
	m.Store("c", 3)
	m.Delete("b")

	var keys []string
	m.Range(func(k string, v int) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)

	want := []string{"a", "c"}
	if len(keys) != len(want) {
		t.Fatalf("Expected %d keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Expected key %q, got %q", want[i], keys[i])
		}
	}
}

func TestComparableMapCompareAndDelete(t *testing.T) {
	m := &ComparableMap[string, int]{}

	m.Store("alpha", 1)

	if deleted := m.CompareAndDelete("alpha", 2); deleted {
		t.Error("Expected mismatched value to not delete")
	}
	if _, ok := m.Load("alpha"); !ok {
		t.Error("Expected alpha to survive mismatched CompareAndDelete")
	}

	if deleted := m.CompareAndDelete("alpha", 1); !deleted {
		t.Error("Expected matching value to delete")
	}
	if _, ok := m.Load("alpha"); ok {
		t.Error("Expected alpha to be deleted")
	}
}

func TestMapConcurrentLoadOrStore(t *testing.T) {
	m := &Map[int, int]{}
	var wg sync.WaitGroup
	stored := make([]bool, 64)

	for i := range stored {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, loaded := m.LoadOrStore(0, i)
			stored[i] = !loaded
		}(i)
	}
	wg.Wait()

	var winners int
	for _, won := range stored {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("Expected exactly one stored winner, got %d", winners)
	}
}
