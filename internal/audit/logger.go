package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/pkg/utils"
)

// ErrBufferFull is reported when entries arrive faster than the sink accepts them.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is reported for entries logged after Close.
var ErrClosed = errors.New("audit logger closed")

// Failure is published on Failures when an entry could not be recorded.
type Failure struct {
	EnquiryID string
	Err       error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("audit %s: %v", f.EnquiryID, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Logger writes audit entries to a Sink in the background. LogEnquiry never blocks
// and never returns an error; failures go to the zap logger and to Failures.
type Logger struct {
	sink     Sink
	entries  chan models.AuditEntry
	failures chan error
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Logger.
type Option func(*Logger)

// WithBufferSize sets how many entries may be pending.
func WithBufferSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.entries = make(chan models.AuditEntry, n)
		}
	}
}

// WithTimeout bounds each sink append.
func WithTimeout(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(z *zap.Logger) Option {
	return func(l *Logger) { l.logger = z }
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// NewLogger starts a background writer for sink.
func NewLogger(sink Sink, opts ...Option) *Logger {
	l := &Logger{
		sink:     sink,
		entries:  make(chan models.AuditEntry, 256),
		failures: make(chan error, 64),
		timeout:  5 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = utils.OrNop(l.logger)
	l.wg.Add(1)
	go l.run()
	return l
}

// LogEnquiry enqueues a timestamped entry and returns immediately. Callers must not
// modify values inside data after the call.
func (l *Logger) LogEnquiry(id string, data map[string]interface{}) {
	entry := models.AuditEntry{
		EnquiryID: id,
		Timestamp: l.now().UTC(),
		Data:      make(map[string]interface{}, len(data)),
	}
	for k, v := range data {
		entry.Data[k] = v
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.fail(id, ErrClosed)
		return
	}
	select {
	case l.entries <- entry:
	default:
		l.fail(id, ErrBufferFull)
	}
}

// Failures reports entries that could not be recorded. Failures are dropped when nobody reads.
func (l *Logger) Failures() <-chan error {
	return l.failures
}

// Close stops accepting entries and waits for pending ones to reach the sink.
// It does not close the sink.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.entries)
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Logger) run() {
	defer l.wg.Done()
	for entry := range l.entries {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		err := l.sink.Append(ctx, entry)
		cancel()
		if err != nil {
			l.fail(entry.EnquiryID, err)
		}
	}
}

func (l *Logger) fail(id string, err error) {
	l.logger.Error("Audit entry not recorded",
		zap.String("enquiry_id", id),
		zap.Error(err))
	select {
	case l.failures <- &Failure{EnquiryID: id, Err: err}:
	default:
	}
}
