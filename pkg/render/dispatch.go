package render

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// dataBatch is the number of triangles a data-parallel worker claims at a
// time.
const dataBatch = 16

// dispatch runs rasterizeTriangle once for every triangle of the frame
// using the active thread mode and returns the triangle count. All
// goroutines have finished when it returns.
func (r *SoftwareRenderer) dispatch(f *frame) int {
	n := f.topology.TriangleCount(len(f.indices))
	if n == 0 {
		return 0
	}

	switch r.threadMode {
	case ThreadTaskParallel:
		r.dispatchTasks(f, n, r.workerCount(ThreadTaskParallel))
	case ThreadDataParallel:
		r.dispatchData(f, n, r.workerCount(ThreadDataParallel))
	default:
		for i := range n {
			r.rasterizeTriangle(f, i)
		}
	}
	return n
}

// dispatchTasks splits the triangles into one contiguous chunk per worker
// and runs each chunk on its own goroutine.
func (r *SoftwareRenderer) dispatchTasks(f *frame, n, workers int) {
	var g errgroup.Group
	for _, c := range partition(n, workers) {
		g.Go(func() error {
			for i := c.start; i < c.end; i++ {
				r.rasterizeTriangle(f, i)
			}
			return nil
		})
	}
	_ = g.Wait() // tasks never fail
}

// dispatchData starts workers that repeatedly claim the next small batch
// of triangles from a shared cursor until none are left.
func (r *SoftwareRenderer) dispatchData(f *frame, n, workers int) {
	workers = min(workers, (n+dataBatch-1)/dataBatch)

	var (
		next atomic.Int64
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Go(func() {
			for {
				start := int(next.Add(dataBatch)) - dataBatch
				if start >= n {
					return
				}
				end := min(start+dataBatch, n)
				for i := start; i < end; i++ {
					r.rasterizeTriangle(f, i)
				}
			}
		})
	}
	wg.Wait()
}

// chunk is a half-open range of triangle numbers.
type chunk struct{ start, end int }

// partition splits n items into at most parts contiguous chunks. The
// remainder goes one extra item each to the first chunks.
func partition(n, parts int) []chunk {
	if n <= 0 {
		return nil
	}
	parts = max(1, min(parts, n))

	size, rem := n/parts, n%parts
	chunks := make([]chunk, 0, parts)
	start := 0
	for i := range parts {
		end := start + size
		if i < rem {
			end++
		}
		chunks = append(chunks, chunk{start, end})
		start = end
	}
	return chunks
}
