package session

import "sync"

// Lanes runs work for the same key strictly in submission order, while
// different keys proceed independently. Idle keys hold no goroutines.
type Lanes struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
	wg    sync.WaitGroup
}

func NewLanes() *Lanes {
	return &Lanes{tails: make(map[string]chan struct{})}
}

// Go queues fn behind earlier work for key and returns immediately.
func (l *Lanes) Go(key string, fn func()) {
	prev, done := l.enqueue(key)
	go func() {
		defer l.wg.Done()
		defer l.finish(key, done)
		if prev != nil {
			<-prev
		}
		fn()
	}()
}

// Do queues fn behind earlier work for key and waits for it to run.
func (l *Lanes) Do(key string, fn func()) {
	prev, done := l.enqueue(key)
	defer l.wg.Done()
	defer l.finish(key, done)
	if prev != nil {
		<-prev
	}
	fn()
}

// Drain blocks until every queued function has returned.
func (l *Lanes) Drain() {
	l.wg.Wait()
}

func (l *Lanes) enqueue(key string) (prev, done chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wg.Add(1)
	prev = l.tails[key]
	done = make(chan struct{})
	l.tails[key] = done
	return prev, done
}

func (l *Lanes) finish(key string, done chan struct{}) {
	close(done)
	l.mu.Lock()
	if l.tails[key] == done {
		delete(l.tails, key)
	}
	l.mu.Unlock()
}

func (l *Lanes) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tails)
}
