package observable

import (
	"reflect"
	"sync"
	"testing"
)

func TestSubject_ReplaysCurrentThenStreams(t *testing.T) {
	t.Parallel()

	s := NewSubject("e0")
	s.Next("e1")

	var got []string
	unsub := s.Subscribe(func(v string) { got = append(got, v) })
	s.Next("e2")

	if want := []string{"e1", "e2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}

	unsub()
	unsub()
	s.Next("e3")
	if len(got) != 2 {
		t.Fatalf("observer called after unsubscribe: %v", got)
	}
	if s.Value() != "e3" {
		t.Fatalf("value: %s", s.Value())
	}
}

func TestSubject_IndependentObservers(t *testing.T) {
	t.Parallel()

	s := NewSubject(0)
	var a, b []int
	s.Subscribe(func(v int) { a = append(a, v) })
	s.Subscribe(func(v int) { b = append(b, v) })
	for i := 1; i <= 3; i++ {
		s.Next(i)
	}

	if want := []int{0, 1, 2, 3}; !reflect.DeepEqual(a, want) || !reflect.DeepEqual(b, want) {
		t.Fatalf("a=%v b=%v", a, b)
	}
}

func TestSubject_ReentrantNextIsQueued(t *testing.T) {
	t.Parallel()

	s := NewSubject(0)
	var first, second []int
	s.Subscribe(func(v int) {
		first = append(first, v)
		if v == 1 {
			s.Next(2)
		}
	})
	s.Subscribe(func(v int) { second = append(second, v) })

	s.Next(1)

	if want := []int{0, 1, 2}; !reflect.DeepEqual(first, want) {
		t.Fatalf("first=%v", first)
	}
	if want := []int{0, 1, 2}; !reflect.DeepEqual(second, want) {
		t.Fatalf("second=%v", second)
	}
}

func TestSubject_ReentrantSubscribe(t *testing.T) {
	t.Parallel()

	s := NewSubject("a")
	var inner []string
	var once sync.Once
	s.Subscribe(func(v string) {
		once.Do(func() {
			s.Subscribe(func(v string) { inner = append(inner, v) })
		})
	})
	s.Next("b")

	if want := []string{"a", "b"}; !reflect.DeepEqual(inner, want) {
		t.Fatalf("inner=%v", inner)
	}
}

func TestSubject_ConcurrentPublishersDeliverEachValueOnce(t *testing.T) {
	t.Parallel()

	s := NewSubject(0)
	seen := make(map[int]int)
	var mu sync.Mutex
	s.Subscribe(func(v int) {
		mu.Lock()
		seen[v]++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Next(v)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i <= 50; i++ {
		if seen[i] != 1 {
			t.Fatalf("value %d delivered %d times", i, seen[i])
		}
	}
}

func TestSubject_UpdateIsConditional(t *testing.T) {
	t.Parallel()

	s := NewSubject(1)
	var got []int
	s.Subscribe(func(v int) { got = append(got, v) })

	forward := func(target int) func(int) (int, bool) {
		return func(cur int) (int, bool) { return target, target > cur }
	}
	if !s.Update(forward(3)) {
		t.Fatalf("forward update rejected")
	}
	if s.Update(forward(2)) {
		t.Fatalf("backward update accepted")
	}
	if want := []int{1, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
