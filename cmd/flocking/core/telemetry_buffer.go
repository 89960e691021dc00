package core

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

// TelemetryRecord is the state of one agent at one tick.
type TelemetryRecord struct {
	RunID    string        `json:"run_id"`
	Tick     uint64        `json:"tick"`
	Time     float64       `json:"t"`
	AgentID  int           `json:"agent_id"`
	Position geometry.Vec3 `json:"position"`
	Velocity geometry.Vec3 `json:"velocity"`
	Layer    int           `json:"layer"`
	Main     bool          `json:"main"`
	Crashed  bool          `json:"crashed"`
}

// TelemetrySink receives flushed batches. Implementations must be safe for
// concurrent use.
type TelemetrySink interface {
	WriteBatch(ctx context.Context, batch []TelemetryRecord) error
}

// TelemetryStats tracks buffer statistics
type TelemetryStats struct {
	Queued        int64
	BatchesSent   int64
	RecordsSent   int64
	WriteFailures int64
	Pending       int
	LastFlush     time.Time
	LastError     error
}

// TelemetryBuffer batches agent states and flushes them to its sinks on an
// interval or when the batch fills up.
type TelemetryBuffer struct {
	runID         string
	sinks         []TelemetrySink
	pending       []TelemetryRecord
	maxBatchSize  int
	maxWriters    int
	flushInterval time.Duration
	stats         TelemetryStats
	mu            sync.Mutex
	flushNow      chan struct{}
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            conc.WaitGroup
}

// NewTelemetryBuffer creates a new telemetry buffer
func NewTelemetryBuffer(runID string, maxBatchSize int, flushInterval time.Duration, maxWriters int, sinks ...TelemetrySink) *TelemetryBuffer {
	if maxBatchSize <= 0 {
		maxBatchSize = 256
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if maxWriters <= 0 {
		maxWriters = 1
	}
	return &TelemetryBuffer{
		runID:         runID,
		sinks:         sinks,
		maxBatchSize:  maxBatchSize,
		maxWriters:    maxWriters,
		flushInterval: flushInterval,
		flushNow:      make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
	}
}

// Start begins the automatic flush goroutine
func (tb *TelemetryBuffer) Start(ctx context.Context) {
	tb.wg.Go(func() {
		ticker := time.NewTicker(tb.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-tb.stopChan:
				return
			case <-ticker.C:
			case <-tb.flushNow:
			}
			if err := tb.Flush(ctx); err != nil {
				logger.Errorf("Error flushing telemetry: %v", err)
			}
		}
	})
}

// Stop ends the flush goroutine and writes whatever is still pending.
func (tb *TelemetryBuffer) Stop(ctx context.Context) error {
	tb.stopOnce.Do(func() { close(tb.stopChan) })
	tb.wg.Wait()
	return tb.Flush(ctx)
}

// QueueAgents queues the state of every agent for the given tick.
func (tb *TelemetryBuffer) QueueAgents(tick uint64, g *swarm.Graph, agents []*swarm.Agent) {
	t := float64(tick) * swarm.FixedDt
	tb.mu.Lock()
	for _, a := range agents {
		main := false
		if g != nil {
			main = g.InMain(a)
		}
		tb.pending = append(tb.pending, TelemetryRecord{
			RunID:    tb.runID,
			Tick:     tick,
			Time:     t,
			AgentID:  a.ID,
			Position: a.Position,
			Velocity: a.Velocity,
			Layer:    a.Layer,
			Main:     main,
			Crashed:  a.Crashed,
		})
	}
	tb.stats.Queued += int64(len(agents))
	full := len(tb.pending) >= tb.maxBatchSize
	tb.mu.Unlock()

	if full {
		select {
		case tb.flushNow <- struct{}{}:
		default:
		}
	}
}

// Flush writes all pending records to every sink.
func (tb *TelemetryBuffer) Flush(ctx context.Context) error {
	tb.mu.Lock()
	if len(tb.pending) == 0 {
		tb.mu.Unlock()
		return nil
	}
	batch := tb.pending
	tb.pending = nil
	tb.stats.LastFlush = time.Now()
	tb.mu.Unlock()

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(tb.maxWriters)
	for _, sink := range tb.sinks {
		p.Go(func(ctx context.Context) error {
			for start := 0; start < len(batch); start += tb.maxBatchSize {
				end := min(start+tb.maxBatchSize, len(batch))
				if err := sink.WriteBatch(ctx, batch[start:end]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	err := p.Wait()

	tb.mu.Lock()
	defer tb.mu.Unlock()
	if err != nil {
		tb.stats.WriteFailures++
		tb.stats.LastError = err
		return fmt.Errorf("failed to write %d telemetry records: %w", len(batch), err)
	}
	tb.stats.BatchesSent++
	tb.stats.RecordsSent += int64(len(batch))
	logger.Debugf("Flushed %d telemetry records", len(batch))
	return nil
}

// GetStats returns current buffer statistics
func (tb *TelemetryBuffer) GetStats() TelemetryStats {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	s := tb.stats
	s.Pending = len(tb.pending)
	return s
}

// JSONLinesSink writes one JSON object per record.
type JSONLinesSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
}

// NewJSONLinesSink wraps w. If w is an io.Closer, Close closes it.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	s := &JSONLinesSink{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// CreateJSONLinesFile creates (or truncates) path and its directory.
func CreateJSONLinesFile(path string) (*JSONLinesSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry file: %w", err)
	}
	return NewJSONLinesSink(f), nil
}

func (s *JSONLinesSink) WriteBatch(ctx context.Context, batch []TelemetryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	for i := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(&batch[i]); err != nil {
			return err
		}
	}
	return s.w.Flush()
}

// Close flushes and closes the underlying writer.
func (s *JSONLinesSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.w.Flush()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}
