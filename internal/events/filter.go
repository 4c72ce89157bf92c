package events

// Filter forwards the values of src for which keep returns true. The
// returned channel closes when src does. Like a broker subscription, a full
// buffer drops values instead of blocking.
func Filter[T any](src <-chan T, keep func(T) bool) <-chan T {
	out := make(chan T, max(cap(src), 1))
	go func() {
		defer close(out)
		for v := range src {
			if !keep(v) {
				continue
			}
			select {
			case out <- v:
			default:
			}
		}
	}()
	return out
}
