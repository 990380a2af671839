package journal

import (
	"fmt"
	"sync"
	"time"

	"bracket/internal/logger"
)

// Level marks the severity of a journal entry.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarn    Level = "WARN"
	LevelSuccess Level = "SUCCESS"
	LevelError   Level = "ERROR"
)

// Entry is one immutable journal record. Seq is assigned at append time and
// strictly increases, so entries carry a single total order across all
// producers.
type Entry struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"ts"`
	Level   Level     `json:"level"`
	Message string    `json:"msg"`
}

const (
	DefaultCapacity = 200
	DefaultBackfill = 50
	DefaultBuffer   = 64
)

type Config struct {
	Capacity int // ring size, oldest evicted first
	Backfill int // entries replayed to a new subscriber
	Buffer   int // per-subscriber channel capacity
}

func (c Config) withDefaults() Config {
	out := c
	if out.Capacity <= 0 {
		out.Capacity = DefaultCapacity
	}
	if out.Backfill <= 0 {
		out.Backfill = DefaultBackfill
	}
	if out.Backfill > out.Capacity {
		out.Backfill = out.Capacity
	}
	if out.Buffer <= 0 {
		out.Buffer = DefaultBuffer
	}
	// 订阅时回放要一次性塞进通道，缓冲不能小于回放条数。
	if out.Buffer < out.Backfill {
		out.Buffer = out.Backfill
	}
	return out
}

// Observer receives side-channel counts (e.g. Prometheus). May be nil.
type Observer interface {
	JournalEntry(level string)
	JournalDropped()
}

// Subscriber drains entries from C until Unsubscribe closes it.
type Subscriber struct {
	C <-chan Entry

	id uint64
	ch chan Entry
}

// Journal is the process-wide operator log: a bounded FIFO ring plus best-effort
// fan-out to live subscribers. Append never blocks and never fails the caller;
// a subscriber that cannot keep up loses entries instead of stalling producers.
type Journal struct {
	cfg Config
	obs Observer

	mu      sync.Mutex
	buf     []Entry
	head    int
	count   int
	seq     uint64
	nextSub uint64
	subs    map[uint64]chan Entry
	dropped uint64
}

func New(cfg Config, obs Observer) *Journal {
	final := cfg.withDefaults()
	return &Journal{
		cfg:  final,
		obs:  obs,
		buf:  make([]Entry, final.Capacity),
		subs: make(map[uint64]chan Entry),
	}
}

// Append records an entry, evicting the oldest once the ring is full, and
// offers it to every subscriber without blocking.
func (j *Journal) Append(level Level, msg string) {
	e := Entry{Time: time.Now(), Level: level, Message: msg}

	j.mu.Lock()
	j.seq++
	e.Seq = j.seq
	if j.count == len(j.buf) {
		j.buf[j.head] = e
		j.head = (j.head + 1) % len(j.buf)
	} else {
		j.buf[(j.head+j.count)%len(j.buf)] = e
		j.count++
	}
	dropped := 0
	for id, ch := range j.subs {
		select {
		case ch <- e:
		default:
			j.dropped++
			dropped++
			logger.Debugf("[journal] subscriber %d full, entry %d dropped", id, e.Seq)
		}
	}
	j.mu.Unlock()

	j.mirror(e)
	if j.obs != nil {
		j.obs.JournalEntry(string(level))
		for i := 0; i < dropped; i++ {
			j.obs.JournalDropped()
		}
	}
}

func (j *Journal) Infof(format string, v ...any)    { j.Append(LevelInfo, fmt.Sprintf(format, v...)) }
func (j *Journal) Warnf(format string, v ...any)    { j.Append(LevelWarn, fmt.Sprintf(format, v...)) }
func (j *Journal) Successf(format string, v ...any) { j.Append(LevelSuccess, fmt.Sprintf(format, v...)) }
func (j *Journal) Errorf(format string, v ...any)   { j.Append(LevelError, fmt.Sprintf(format, v...)) }

// mirror copies the entry into the process log at the matching level.
func (j *Journal) mirror(e Entry) {
	switch e.Level {
	case LevelWarn:
		logger.Warnf("[journal] %s", e.Message)
	case LevelError:
		logger.Errorf("[journal] %s", e.Message)
	default:
		logger.Infof("[journal] %s", e.Message)
	}
}

// Subscribe returns a channel primed with the most recent entries (up to the
// configured backfill, in insertion order) that then receives every later
// append. The backfill always fits the channel buffer, so priming cannot block.
func (j *Journal) Subscribe() *Subscriber {
	j.mu.Lock()
	defer j.mu.Unlock()
	ch := make(chan Entry, j.cfg.Buffer)
	start := j.count - j.cfg.Backfill
	if start < 0 {
		start = 0
	}
	for i := start; i < j.count; i++ {
		ch <- j.buf[(j.head+i)%len(j.buf)]
	}
	j.nextSub++
	id := j.nextSub
	j.subs[id] = ch
	return &Subscriber{C: ch, id: id, ch: ch}
}

// Unsubscribe removes the subscriber and closes its channel. Safe to call more
// than once.
func (j *Journal) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	j.mu.Lock()
	_, ok := j.subs[sub.id]
	if ok {
		delete(j.subs, sub.id)
	}
	j.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Snapshot returns every retained entry, oldest first.
func (j *Journal) Snapshot() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, 0, j.count)
	for i := 0; i < j.count; i++ {
		out = append(out, j.buf[(j.head+i)%len(j.buf)])
	}
	return out
}

// Recent returns up to n retained entries, newest first.
func (j *Journal) Recent(n int) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	if n <= 0 || n > j.count {
		n = j.count
	}
	out := make([]Entry, 0, n)
	for i := j.count - 1; i >= j.count-n; i-- {
		out = append(out, j.buf[(j.head+i)%len(j.buf)])
	}
	return out
}

// Dropped reports how many entries were discarded because a subscriber buffer
// was full.
func (j *Journal) Dropped() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

func (j *Journal) Subscribers() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.subs)
}
