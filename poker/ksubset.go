package poker

import (
	"context"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

// binomial returns C(n, k), computed iteratively to avoid overflow for the
// values this package deals with (n <= 52, k <= 7).
func binomial(n, k int) uint64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	var result uint64 = 1
	for i := 0; i < k; i++ {
		result = result * uint64(n-i) / uint64(i+1)
	}
	return result
}

// Binomial returns C(n, k), the number of k-subsets of an n-element set.
// Valid for 0 <= k <= n <= 52.
func Binomial(n, k int) uint64 {
	return binomial(n, k)
}

// nextSubset advances c (a strictly ascending slice of k indices into
// {0, ..., n-1}) to its lexicographic successor. It returns false once c
// was already the last subset.
func nextSubset(c []int, n int) bool {
	k := len(c)
	i := k - 1
	for i >= 0 && c[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	c[i]++
	for j := i + 1; j < k; j++ {
		c[j] = c[i] + (j - i)
	}
	return true
}

// EnumerateSubsets calls visit once for every k-subset of {0, ..., n-1}, in
// ascending lexicographic order. The slice passed to visit is reused
// between calls; visit must not retain it.
func EnumerateSubsets(n, k int, visit func(indices []int)) {
	if k < 0 || k > n {
		return
	}
	if k == 0 {
		visit(nil)
		return
	}

	c := make([]int, k)
	for i := range c {
		c[i] = i
	}

	for {
		visit(c)
		if !nextSubset(c, n) {
			return
		}
	}
}

// nthSubset returns the rank-th (0-indexed) k-subset of {0, ..., n-1} in
// ascending lexicographic order, using the combinatorial number system to
// unrank directly without walking every earlier subset. It converts the
// lexicographic rank to the equivalent colex rank (via the C(n,k)-1-rank
// complement) and peels off elements largest-first.
func nthSubset(n, k int, rank uint64, out []int) {
	a := n
	b := k
	x := binomial(n, k) - 1 - rank

	for i := 0; i < k; i++ {
		a--
		for binomial(a, b) > x {
			a--
		}
		out[i] = n - 1 - a
		x -= binomial(a, b)
		b--
	}
}

// ParallelEnumerateSubsets partitions the C(n, k) lexicographic k-subsets of
// {0, ..., n-1} into contiguous ranges and visits each range concurrently
// across workers goroutines, using the combinatorial number system to
// unrank each worker's starting subset so no worker needs another's
// output to begin. visit is called once per subset with a buffer private
// to its worker; it must not retain the slice. workers <= 0 is treated as 1.
func ParallelEnumerateSubsets(ctx context.Context, n, k, workers int, visit func(indices []int)) error {
	total := binomial(n, k)
	if total == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if uint64(workers) > total {
		workers = int(total)
	}

	chunk := total / uint64(workers)
	remainder := total % uint64(workers)

	g, ctx := errgroup.WithContext(ctx)

	var start uint64
	for w := 0; w < workers; w++ {
		count := chunk
		if uint64(w) < remainder {
			count++
		}
		lo, hi := start, start+count
		start = hi

		g.Go(func() error {
			c := make([]int, k)
			nthSubset(n, k, lo, c)

			for r := lo; r < hi; r++ {
				if r%4096 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				visit(c)
				if r+1 < hi {
					nextSubset(c, n)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// ParallelSample runs tasks workers, each drawing perTask independent
// k-card samples from cards by uniform choice without replacement (a
// partial Fisher-Yates shuffle per sample, not exhaustive enumeration).
// It is the odds-estimation counterpart to ParallelEnumerateSubsets: where
// that function visits every k-subset, this one draws a bounded number of
// random ones. Every worker gets its own *rand.Rand, seeded by drawing two
// uint64s from rng before any worker starts so rng itself is only ever
// touched from the calling goroutine. report is invoked once per sample
// with the originating worker index; the sample slice is private to its
// worker and must not be retained. tasks <= 0 is treated as 1.
func ParallelSample(ctx context.Context, cards []Card, k, tasks, perTask int, rng *rand.Rand, report func(worker int, sample []Card)) error {
	if k < 0 || k > len(cards) {
		return nil
	}
	if tasks <= 0 {
		tasks = 1
	}

	workerRngs := make([]*rand.Rand, tasks)
	for w := range workerRngs {
		workerRngs[w] = rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
	}

	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < tasks; w++ {
		w := w
		g.Go(func() error {
			pool := make([]Card, len(cards))
			wr := workerRngs[w]

			for t := 0; t < perTask; t++ {
				if t%4096 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				copy(pool, cards)
				sample := make([]Card, k)
				for i := 0; i < k; i++ {
					j := i + wr.IntN(len(pool)-i)
					pool[i], pool[j] = pool[j], pool[i]
					sample[i] = pool[i]
				}
				report(w, sample)
			}
			return nil
		})
	}

	return g.Wait()
}
