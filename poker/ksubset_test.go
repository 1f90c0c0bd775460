package poker

import (
	"context"
	"sync"
	"testing"
)

func TestEnumerateSubsetsCountAndUniqueness(t *testing.T) {
	t.Parallel()

	const n, k = 8, 3
	want := binomial(n, k)

	seen := make(map[int]bool)
	var count uint64
	EnumerateSubsets(n, k, func(idx []int) {
		count++
		key := encodeSubset(idx)
		if seen[key] {
			t.Fatalf("subset %v visited twice", idx)
		}
		seen[key] = true

		for i := 1; i < len(idx); i++ {
			if idx[i] <= idx[i-1] {
				t.Fatalf("subset %v not strictly ascending", idx)
			}
		}
	})

	if count != want {
		t.Fatalf("visited %d subsets, want %d", count, want)
	}
}

func TestEnumerateSubsetsLexicographicOrder(t *testing.T) {
	t.Parallel()

	var got [][]int
	EnumerateSubsets(4, 2, func(idx []int) {
		cp := append([]int(nil), idx...)
		got = append(got, cp)
	})

	want := [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	if len(got) != len(want) {
		t.Fatalf("got %d subsets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i][0] != want[i][0] || got[i][1] != want[i][1] {
			t.Fatalf("subset %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParallelEnumerateSubsetsMatchesSerial(t *testing.T) {
	t.Parallel()

	const n, k, workers = 10, 4, 5

	var serial [][]int
	EnumerateSubsets(n, k, func(idx []int) {
		serial = append(serial, append([]int(nil), idx...))
	})

	var mu sync.Mutex
	var parallel [][]int

	err := ParallelEnumerateSubsets(context.Background(), n, k, workers, func(idx []int) {
		mu.Lock()
		parallel = append(parallel, append([]int(nil), idx...))
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("ParallelEnumerateSubsets error: %v", err)
	}

	if len(parallel) != len(serial) {
		t.Fatalf("parallel produced %d subsets, serial produced %d", len(parallel), len(serial))
	}

	seen := make(map[int]bool, len(serial))
	for _, idx := range serial {
		seen[encodeSubset(idx)] = true
	}
	for _, idx := range parallel {
		if !seen[encodeSubset(idx)] {
			t.Fatalf("parallel subset %v not produced by serial enumeration", idx)
		}
	}
}

func encodeSubset(idx []int) int {
	h := 0
	for _, v := range idx {
		h = h*64 + v
	}
	return h
}

func TestNthSubsetMatchesEnumerationOrder(t *testing.T) {
	t.Parallel()

	const n, k = 7, 3
	var want [][]int
	EnumerateSubsets(n, k, func(idx []int) {
		want = append(want, append([]int(nil), idx...))
	})

	out := make([]int, k)
	for rank, w := range want {
		nthSubset(n, k, uint64(rank), out)
		for i := range w {
			if out[i] != w[i] {
				t.Fatalf("nthSubset(%d,%d,%d) = %v, want %v", n, k, rank, out, w)
			}
		}
	}
}

func TestBinomial(t *testing.T) {
	t.Parallel()

	cases := []struct {
		n, k int
		want uint64
	}{
		{52, 7, 133784560},
		{52, 5, 2598960},
		{52, 2, 1326},
		{5, 0, 1},
		{5, 5, 1},
		{5, 6, 0},
	}
	for _, c := range cases {
		if got := Binomial(c.n, c.k); got != c.want {
			t.Errorf("Binomial(%d, %d) = %d, want %d", c.n, c.k, got, c.want)
		}
	}
}
