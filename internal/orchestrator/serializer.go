package orchestrator

import "sync"

// serializer runs submitted work per key in FIFO order. Work for different
// keys runs concurrently; work for the same key never overlaps.
type serializer struct {
	mu     sync.Mutex
	queues map[string][]func()
	wg     sync.WaitGroup
}

func newSerializer() *serializer {
	return &serializer{queues: make(map[string][]func())}
}

// Submit enqueues fn behind any pending work for key. The first submission
// for an idle key starts a drain goroutine; later ones just append, so
// submission order is execution order.
func (s *serializer) Submit(key string, fn func()) {
	s.mu.Lock()
	queue, active := s.queues[key]
	s.queues[key] = append(queue, fn)
	if !active {
		s.wg.Add(1)
		go s.drain(key)
	}
	s.mu.Unlock()
}

func (s *serializer) drain(key string) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		queue := s.queues[key]
		if len(queue) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		fn := queue[0]
		s.queues[key] = queue[1:]
		s.mu.Unlock()

		fn()
	}
}

// Wait blocks until all queues are drained. Used on shutdown.
func (s *serializer) Wait() {
	s.wg.Wait()
}
