// Package chanutil provides small generic fan-out/fan-in helpers in the
// style of eutils' chan.go (SliceToChan, ChanToChan, ChanToSlice), generalized
// with Go generics so the same helpers serve article paths, XML bytes and
// extracted records instead of only strings.
package chanutil

// SliceToChan streams a slice's elements down a buffered channel, closing it
// once the slice is exhausted. Mirrors eutils.SliceToChan.
func SliceToChan[T any](values []T, depth int) <-chan T {
	out := make(chan T, depth)
	go func() {
		defer close(out)
		for _, v := range values {
			out <- v
		}
	}()
	return out
}

// ChanToSlice drains a channel into a slice. Mirrors eutils.ChanToString's
// drain pattern, generalized beyond strings.
func ChanToSlice[T any](in <-chan T) []T {
	var out []T
	for v := range in {
		out = append(out, v)
	}
	return out
}

// Buffer fully drains in before retransmitting, decoupling a slow producer
// from a consumer that isn't ready yet. Mirrors eutils.ChanToChan.
func Buffer[T any](in <-chan T, depth int) <-chan T {
	if in == nil {
		return nil
	}
	out := make(chan T, depth)
	go func() {
		defer close(out)
		var buffered []T
		for v := range in {
			buffered = append(buffered, v)
		}
		for _, v := range buffered {
			out <- v
		}
	}()
	return out
}

// FanOut runs worker against every item received from in, using n concurrent
// goroutines, and returns a channel of results closed once every worker has
// finished. The "launch N workers, then a separate goroutine that waits and
// closes the output" shape matches eutils' merge.go CreateFusers/CreateMergers.
func FanOut[In, Out any](in <-chan In, n, depth int, worker func(In) Out) <-chan Out {
	out := make(chan Out, depth)
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			for item := range in {
				out <- worker(item)
			}
			done <- struct{}{}
		}()
	}
	go func() {
		for i := 0; i < n; i++ {
			<-done
		}
		close(out)
	}()
	return out
}
