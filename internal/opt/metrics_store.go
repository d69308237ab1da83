package opt

import "sync"

type key struct {
	Instance string
	Algo     string
}

var (
	mu    sync.Mutex
	store = map[key]Result{}
)

// RecordResult keeps the latest run outcome per (instance, algorithm) so
// handlers can compare solvers without re-running them.
func RecordResult(instance, algo string, r Result) {
	mu.Lock()
	store[key{Instance: instance, Algo: algo}] = r
	mu.Unlock()
}

// GetResults returns the recorded outcomes for an instance, keyed by
// algorithm name.
func GetResults(instance string) map[string]Result {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]Result{}
	for k, v := range store {
		if k.Instance == instance {
			out[k.Algo] = v
		}
	}
	return out
}
