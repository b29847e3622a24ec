package ui

import (
	"bufio"
	"context"
	"io"
	"slices"
	"sync"
)

// LineReader delivers input lines on demand to one or more readers. One
// goroutine owns the underlying reader so a cancelled ReadLine never loses
// or splits a line. Lines go to waiting readers in arrival order, except that
// ReadLinePriority callers are served before ReadLine callers.
type LineReader struct {
	src  io.Reader
	once sync.Once

	mu      sync.Mutex
	cond    *sync.Cond
	waiters []*lineWaiter
	held    []string // lines handed back by cancelled readers; only kept while nobody waits
	err     error    // set once the source is exhausted
}

type lineWaiter struct {
	priority bool
	ch       chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewLineReader reads lines from r. Reading starts on the first ReadLine.
func NewLineReader(r io.Reader) *LineReader {
	l := &LineReader{src: r}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *LineReader) start() {
	go func() {
		sc := bufio.NewScanner(l.src)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			l.mu.Lock()
			for len(l.waiters) == 0 || len(l.held) > 0 {
				l.cond.Wait()
			}
			l.deliverLocked(line)
			l.mu.Unlock()
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		l.err = sc.Err()
		if l.err == nil {
			l.err = io.EOF
		}
		for _, w := range l.waiters {
			w.ch <- lineResult{err: l.err}
		}
		l.waiters = nil
	}()
}

// deliverLocked hands line to the first waiter. Callers hold mu and ensure
// there is one.
func (l *LineReader) deliverLocked(line string) {
	w := l.waiters[0]
	l.waiters = l.waiters[1:]
	w.ch <- lineResult{line: line}
	l.cond.Broadcast()
}

// ReadLine returns the next line without its terminator. It returns io.EOF
// once input is exhausted and ctx.Err() if ctx ends first.
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	return l.read(ctx, false)
}

// ReadLinePriority is ReadLine for answers the user is being asked for right
// now. It is served ahead of any ReadLine already waiting.
func (l *LineReader) ReadLinePriority(ctx context.Context) (string, error) {
	return l.read(ctx, true)
}

func (l *LineReader) read(ctx context.Context, priority bool) (string, error) {
	l.once.Do(l.start)

	l.mu.Lock()
	if len(l.held) > 0 {
		line := l.held[0]
		l.held = l.held[1:]
		l.cond.Broadcast()
		l.mu.Unlock()
		return line, nil
	}
	if l.err != nil {
		err := l.err
		l.mu.Unlock()
		return "", err
	}
	w := &lineWaiter{priority: priority, ch: make(chan lineResult, 1)}
	at := len(l.waiters)
	if priority {
		at = slices.IndexFunc(l.waiters, func(o *lineWaiter) bool { return !o.priority })
		if at < 0 {
			at = len(l.waiters)
		}
	}
	l.waiters = slices.Insert(l.waiters, at, w)
	l.cond.Broadcast()
	l.mu.Unlock()

	select {
	case res := <-w.ch:
		return res.line, res.err
	case <-ctx.Done():
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if i := slices.Index(l.waiters, w); i >= 0 {
		l.waiters = slices.Delete(l.waiters, i, i+1)
		return "", ctx.Err()
	}
	// Delivered concurrently with cancellation; give the line back.
	if res := <-w.ch; res.err == nil {
		if len(l.waiters) > 0 {
			l.deliverLocked(res.line)
		} else {
			l.held = append([]string{res.line}, l.held...)
			l.cond.Broadcast()
		}
	}
	return "", ctx.Err()
}
