package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/metrics"
)

// FlightLogger records flight events and metric histories for one run
type FlightLogger struct {
	runID      string
	startTime  time.Time
	events     []FlightEvent
	dropped    int
	metrics    map[string]Metric
	eventCap   int
	historyCap int
	out        io.Writer
	minLevel   int
	mu         sync.RWMutex
}

// FlightEvent is one logged occurrence during a run
type FlightEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Tick      uint64                 `json:"tick"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	AgentID   *int                   `json:"agent_id,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Metric is a tracked value with a bounded history
type Metric struct {
	Name        string        `json:"name"`
	Value       float64       `json:"value"`
	Unit        string        `json:"unit,omitempty"`
	LastUpdated time.Time     `json:"last_updated"`
	History     []MetricPoint `json:"-"`
}

// MetricPoint is a metric value at a tick
type MetricPoint struct {
	Tick  uint64  `json:"tick"`
	Value float64 `json:"value"`
}

// Event types
const (
	EventTypeSpawn         = "spawn"
	EventTypeCrash         = "crash"
	EventTypeSplit         = "component_split"
	EventTypeMerge         = "component_merge"
	EventTypeLeader        = "leader"
	EventTypePrediction    = "prediction"
	EventTypeNaN           = "nan_skip"
	EventTypeWaypoint      = "waypoint"
	EventTypeObstacle      = "obstacle"
	EventTypeSystem        = "system"
	EventTypeRouteComplete = "route_complete"
	EventTypeSwarmStatus   = "swarm_status"
)

// Severity levels
const (
	SeverityDebug    = "debug"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

var severityRank = map[string]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

var (
	colorDebug    = color.New(color.FgHiBlack)
	colorInfo     = color.New(color.FgCyan)
	colorWarning  = color.New(color.FgYellow)
	colorError    = color.New(color.FgRed)
	colorCritical = color.New(color.FgRed, color.Bold)
	colorSuccess  = color.New(color.FgGreen)
)

// LoggerOption configures a FlightLogger
type LoggerOption func(*FlightLogger)

// WithOutput sends console lines to w. A nil writer silences them.
func WithOutput(w io.Writer) LoggerOption {
	return func(fl *FlightLogger) { fl.out = w }
}

// WithBuffers bounds the event log and each metric history. Non-positive
// values keep the defaults.
func WithBuffers(events, history int) LoggerOption {
	return func(fl *FlightLogger) {
		if events > 0 {
			fl.eventCap = events
		}
		if history > 0 {
			fl.historyCap = history
		}
	}
}

// WithConsoleLevel hides console lines below level ("debug", "info", "warn"
// or "error"). Events are recorded regardless.
func WithConsoleLevel(level string) LoggerOption {
	return func(fl *FlightLogger) {
		switch level {
		case "debug":
			fl.minLevel = severityRank[SeverityDebug]
		case "warn":
			fl.minLevel = severityRank[SeverityWarning]
		case "error":
			fl.minLevel = severityRank[SeverityError]
		default:
			fl.minLevel = severityRank[SeverityInfo]
		}
	}
}

// NewFlightLogger creates a logger for runID
func NewFlightLogger(runID string, opts ...LoggerOption) *FlightLogger {
	fl := &FlightLogger{
		runID:      runID,
		startTime:  time.Now(),
		metrics:    make(map[string]Metric),
		eventCap:   10000,
		historyCap: 1000,
		out:        os.Stdout,
		minLevel:   severityRank[SeverityInfo],
	}
	for _, opt := range opts {
		opt(fl)
	}

	fl.logColoredMessage(SeverityInfo, "Flight Started",
		fmt.Sprintf("ID: %s | Time: %s", shortID(runID), fl.startTime.Format("15:04:05")))
	return fl
}

// RunID returns the identifier of the run
func (fl *FlightLogger) RunID() string { return fl.runID }

// StartTime returns when the logger was created
func (fl *FlightLogger) StartTime() time.Time { return fl.startTime }

// LogSpawn logs the initial swarm
func (fl *FlightLogger) LogSpawn(tick uint64, drones, dummies int, formation string) {
	fl.logEvent(FlightEvent{
		Tick:     tick,
		Type:     EventTypeSpawn,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("Spawned %d drones in %s formation", drones, formation),
		Details: map[string]interface{}{
			"drones":    drones,
			"dummies":   dummies,
			"formation": formation,
		},
	})
}

// LogCrash logs an agent crash
func (fl *FlightLogger) LogCrash(tick uint64, agentID int, position geometry.Vec3, cause string) {
	id := agentID
	fl.logEvent(FlightEvent{
		Tick:     tick,
		Type:     EventTypeCrash,
		Severity: SeverityWarning,
		AgentID:  &id,
		Message:  fmt.Sprintf("Drone %d crashed (%s)", agentID, cause),
		Details: map[string]interface{}{
			"cause":    cause,
			"position": formatVec(position),
		},
	})
	fl.logColoredMessage(SeverityWarning, "💥 Crash",
		fmt.Sprintf("Tick: %d | Drone: %d | Cause: %s | At: %s", tick, agentID, cause, formatVec(position)))
}

// LogComponents logs a change in the number of connected components
func (fl *FlightLogger) LogComponents(tick uint64, previous, current, mainSize int) {
	eventType, severity, title := EventTypeMerge, SeverityInfo, "🔗 Swarm Merged"
	if current > previous {
		eventType, severity, title = EventTypeSplit, SeverityWarning, "✂️ Swarm Split"
	}
	fl.logEvent(FlightEvent{
		Tick:     tick,
		Type:     eventType,
		Severity: severity,
		Message:  fmt.Sprintf("Components %d -> %d (main %d)", previous, current, mainSize),
		Details: map[string]interface{}{
			"previous":  previous,
			"current":   current,
			"main_size": mainSize,
		},
	})
	fl.logColoredMessage(severity, title,
		fmt.Sprintf("Tick: %d | Components: %d -> %d | Main: %d", tick, previous, current, mainSize))
}

// LogLeaderLost logs the leader leaving the swarm
func (fl *FlightLogger) LogLeaderLost(tick uint64, leaderID int, reason string) {
	id := leaderID
	fl.logEvent(FlightEvent{
		Tick:     tick,
		Type:     EventTypeLeader,
		Severity: SeverityError,
		AgentID:  &id,
		Message:  fmt.Sprintf("Leader %d lost: %s", leaderID, reason),
	})
	fl.logColoredMessage(SeverityError, "👑 Leader Lost", fmt.Sprintf("Tick: %d | Leader: %d | %s", tick, leaderID, reason))
}

// LogPredictedCrash logs a forecast crash for an agent
func (fl *FlightLogger) LogPredictedCrash(tick uint64, agentID, step int, horizon time.Duration) {
	id := agentID
	fl.logEvent(FlightEvent{
		Tick:     tick,
		Type:     EventTypePrediction,
		Severity: SeverityWarning,
		AgentID:  &id,
		Message:  fmt.Sprintf("Drone %d predicted to crash at forecast step %d", agentID, step),
		Details: map[string]interface{}{
			"step":    step,
			"horizon": horizon.String(),
		},
	})
	fl.logColoredMessage(SeverityWarning, "🔮 Predicted Crash",
		fmt.Sprintf("Tick: %d | Drone: %d | Step: %d of %s", tick, agentID, step, horizon))
}

// LogSkipped logs an agent whose update was skipped for non-finite state
func (fl *FlightLogger) LogSkipped(tick uint64, agentID int) {
	id := agentID
	fl.logEvent(FlightEvent{
		Tick:     tick,
		Type:     EventTypeNaN,
		Severity: SeverityError,
		AgentID:  &id,
		Message:  fmt.Sprintf("Drone %d has non-finite state, update skipped", agentID),
	})
}

// LogWaypoint logs a reached waypoint
func (fl *FlightLogger) LogWaypoint(tick uint64, index, lap int, waypoint geometry.Vec3, complete bool) {
	fl.logEvent(FlightEvent{
		Tick:     tick,
		Type:     EventTypeWaypoint,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("Waypoint %d reached at %s", index, formatVec(waypoint)),
		Details: map[string]interface{}{
			"index": index,
			"lap":   lap,
		},
	})
	fl.logColoredMessage(SeverityInfo, "📍 Waypoint",
		fmt.Sprintf("Tick: %d | Index: %d | Lap: %d | At: %s", tick, index, lap, formatVec(waypoint)))

	if complete {
		fl.logEvent(FlightEvent{
			Tick:     tick,
			Type:     EventTypeRouteComplete,
			Severity: SeverityInfo,
			Message:  "Route complete",
		})
	}
}

// LogNearMiss logs agents flying inside their obstacle avoidance radius
func (fl *FlightLogger) LogNearMiss(tick uint64, agentIDs []int, clearance float64) {
	fl.logEvent(FlightEvent{
		Tick:     tick,
		Type:     EventTypeObstacle,
		Severity: SeverityDebug,
		Message:  fmt.Sprintf("%d drones near obstacles, clearance %.2fm", len(agentIDs), clearance),
		Details: map[string]interface{}{
			"agents":    agentIDs,
			"clearance": clearance,
		},
	})
}

// LogSwarmStatus logs a periodic status line
func (fl *FlightLogger) LogSwarmStatus(tick uint64, alive, total, components int, cohesion float64) {
	fl.logEvent(FlightEvent{
		Tick:     tick,
		Type:     EventTypeSwarmStatus,
		Severity: SeverityDebug,
		Message:  fmt.Sprintf("%d/%d alive, %d components", alive, total, components),
		Details: map[string]interface{}{
			"alive":      alive,
			"total":      total,
			"components": components,
			"cohesion":   cohesion,
		},
	})
	fl.logColoredMessage(SeverityDebug, "📡 Status",
		fmt.Sprintf("Tick: %d | Alive: %d/%d | Components: %d | Cohesion: %.2f", tick, alive, total, components, cohesion))
}

// LogError logs an error event
func (fl *FlightLogger) LogError(message string, err error, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["error"] = err.Error()

	fl.logEvent(FlightEvent{
		Type:     EventTypeSystem,
		Severity: SeverityError,
		Message:  message,
		Details:  details,
	})

	logger.Errorf("%s: %v", message, err)
}

// UpdateMetric records value for name at tick
func (fl *FlightLogger) UpdateMetric(tick uint64, name string, value float64, unit string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.updateMetricLocked(tick, name, value, unit)
}

func (fl *FlightLogger) updateMetricLocked(tick uint64, name string, value float64, unit string) {
	m, ok := fl.metrics[name]
	if !ok {
		m = Metric{Name: name, Unit: unit}
	}
	m.Value = value
	m.LastUpdated = time.Now()
	m.History = append(m.History, MetricPoint{Tick: tick, Value: value})
	if len(m.History) > fl.historyCap {
		m.History = m.History[len(m.History)-fl.historyCap:]
	}
	fl.metrics[name] = m
}

// RecordSnapshot stores every value of s as a metric
func (fl *FlightLogger) RecordSnapshot(tick uint64, s metrics.Snapshot) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	fl.updateMetricLocked(tick, "agents", float64(s.Agents), "")
	fl.updateMetricLocked(tick, "components", float64(s.Components), "")
	fl.updateMetricLocked(tick, "main_size", float64(s.MainSize), "")
	fl.updateMetricLocked(tick, "relative_connectivity", s.RelativeConnectivity, "")
	fl.updateMetricLocked(tick, "cohesion_radius", s.CohesionRadius, "m")
	fl.updateMetricLocked(tick, "deviation_energy", s.DeviationEnergy, "")
	fl.updateMetricLocked(tick, "mean_distance_ratio", s.MeanDistanceRatio, "")
	fl.updateMetricLocked(tick, "velocity_mismatch", s.VelocityMismatch, "")
	fl.updateMetricLocked(tick, "overall_cohesion", s.OverallCohesion, "")
	fl.updateMetricLocked(tick, "asking_to_shrink", s.AskingToShrink, "")
	fl.updateMetricLocked(tick, "connection_score", s.ConnectionScore, "")
	fl.updateMetricLocked(tick, "line_of_sight_connectivity", s.LineOfSightConnectivity, "")
}

// GetEvents returns a copy of the recorded events
func (fl *FlightLogger) GetEvents() []FlightEvent {
	fl.mu.RLock()
	defer fl.mu.RUnlock()

	events := make([]FlightEvent, len(fl.events))
	copy(events, fl.events)
	return events
}

// GetMetrics returns a copy of the tracked metrics
func (fl *FlightLogger) GetMetrics() map[string]Metric {
	fl.mu.RLock()
	defer fl.mu.RUnlock()

	out := make(map[string]Metric, len(fl.metrics))
	for k, v := range fl.metrics {
		v.History = append([]MetricPoint(nil), v.History...)
		out[k] = v
	}
	return out
}

// FlightSummary is an aggregate view of the logger
type FlightSummary struct {
	RunID         string
	StartTime     time.Time
	Duration      time.Duration
	TotalEvents   int
	DroppedEvents int
	EventCounts   map[string]int
	Metrics       map[string]Metric
}

// GetSummary returns the run summary
func (fl *FlightLogger) GetSummary() FlightSummary {
	fl.mu.RLock()
	defer fl.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range fl.events {
		counts[e.Type]++
	}
	m := make(map[string]Metric, len(fl.metrics))
	for k, v := range fl.metrics {
		m[k] = v
	}

	return FlightSummary{
		RunID:         fl.runID,
		StartTime:     fl.startTime,
		Duration:      time.Since(fl.startTime),
		TotalEvents:   len(fl.events) + fl.dropped,
		DroppedEvents: fl.dropped,
		EventCounts:   counts,
		Metrics:       m,
	}
}

// PrintSummary prints a formatted summary to the logger's output
func (fl *FlightLogger) PrintSummary() {
	if fl.out == nil {
		return
	}
	summary := fl.GetSummary()

	colorSuccess.Fprintln(fl.out, "\n╔══════════════════════════════════════════════════╗")
	colorSuccess.Fprintf(fl.out, "║          FLIGHT SUMMARY - %-8s               ║\n", shortID(summary.RunID))
	colorSuccess.Fprintln(fl.out, "╚══════════════════════════════════════════════════╝")

	fmt.Fprintf(fl.out, "\n📊 Duration: %s | Total Events: %d\n", formatDuration(summary.Duration), summary.TotalEvents)

	fmt.Fprintln(fl.out, "\n📈 Event Distribution:")
	for _, t := range sortedKeys(summary.EventCounts) {
		fmt.Fprintf(fl.out, "   %-20s: %d\n", t, summary.EventCounts[t])
	}

	if len(summary.Metrics) > 0 {
		fmt.Fprintln(fl.out, "\n📊 Final Metrics:")
		names := make([]string, 0, len(summary.Metrics))
		for name := range summary.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			m := summary.Metrics[name]
			fmt.Fprintf(fl.out, "   %-28s: %.3f %s\n", name, m.Value, m.Unit)
		}
	}
	colorSuccess.Fprintln(fl.out, "\n════════════════════════════════════════════════════")
}

func (fl *FlightLogger) logEvent(event FlightEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	fl.events = append(fl.events, event)
	if over := len(fl.events) - fl.eventCap; over > 0 {
		fl.events = fl.events[over:]
		fl.dropped += over
	}
}

func (fl *FlightLogger) logColoredMessage(severity, eventType, message string) {
	if fl.out == nil || severityRank[severity] < fl.minLevel {
		return
	}

	var c *color.Color
	switch severity {
	case SeverityDebug:
		c = colorDebug
	case SeverityWarning:
		c = colorWarning
	case SeverityError:
		c = colorError
	case SeverityCritical:
		c = colorCritical
	default:
		c = colorInfo
	}

	fmt.Fprintf(fl.out, "[%s] %s %s | %s\n",
		time.Now().Format("15:04:05.000"),
		c.Sprint(fmt.Sprintf("%-8s", severity)),
		eventType,
		message)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatVec(v geometry.Vec3) string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", v.X(), v.Y(), v.Z())
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
