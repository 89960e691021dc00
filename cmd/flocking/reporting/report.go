package reporting

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

// ReportGenerator builds flight reports from a FlightLogger
type ReportGenerator struct {
	logger *FlightLogger
	config ReportConfig
}

// ReportConfig configures report generation
type ReportConfig struct {
	OutputDir        string
	Format           string // "json", "html", "markdown"
	DetailLevel      string // "summary", "detailed", "full"
	SimulationConfig map[string]interface{}
}

// FlightOutcome is the end state handed over by the simulation
type FlightOutcome struct {
	Reason           string        `json:"reason"`
	Ticks            uint64        `json:"ticks"`
	SimulatedTime    time.Duration `json:"simulated_time"`
	Drones           int           `json:"drones"`
	Survivors        int           `json:"survivors"`
	RouteComplete    bool          `json:"route_complete"`
	WaypointsReached int           `json:"waypoints_reached"`
	MinClearance     float64       `json:"min_clearance"`
	NearMisses       int           `json:"near_misses"`
	Skipped          int           `json:"skipped_updates"`
	Forecasts        int64         `json:"forecasts"`
	ForecastRestarts int64         `json:"forecast_restarts"`
	LayerCounts      map[int]int   `json:"layer_counts"`
	TelemetryRecords int64         `json:"telemetry_records"`
}

// Predicted reports whether any forecast ran.
func (o FlightOutcome) Predicted() bool { return o.Forecasts > 0 }

// Report is a complete flight report
type Report struct {
	Metadata   ReportMetadata         `json:"metadata"`
	Summary    ExecutiveSummary       `json:"summary"`
	Outcome    FlightOutcome          `json:"outcome"`
	Metrics    []MetricStats          `json:"metrics"`
	Crashes    []EventLogEntry        `json:"crashes"`
	Timeline   []TimelineEntry        `json:"timeline"`
	EventLog   []EventLogEntry        `json:"event_log,omitempty"`
	Findings   []Finding              `json:"findings"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// ReportMetadata contains report metadata
type ReportMetadata struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	RunStart    time.Time `json:"run_start"`
	RunEnd      time.Time `json:"run_end"`
	Duration    string    `json:"duration"`
	Version     string    `json:"version"`
}

// ExecutiveSummary is the high level result
type ExecutiveSummary struct {
	Outcome      string   `json:"outcome"`
	SurvivalRate float64  `json:"survival_rate"`
	Crashes      int      `json:"crashes"`
	Splits       int      `json:"splits"`
	Predicted    int      `json:"predicted_crashes"`
	KeyEvents    []string `json:"key_events"`
}

// MetricStats summarizes the history of one metric
type MetricStats struct {
	Name    string  `json:"name"`
	Unit    string  `json:"unit,omitempty"`
	Samples int     `json:"samples"`
	Min     float64 `json:"min"`
	Mean    float64 `json:"mean"`
	Max     float64 `json:"max"`
	StdDev  float64 `json:"std_dev"`
	Final   float64 `json:"final"`
}

// TimelineEntry is a significant event on the timeline
type TimelineEntry struct {
	Tick        uint64                 `json:"tick"`
	ElapsedTime string                 `json:"elapsed_time"`
	EventType   string                 `json:"event_type"`
	Description string                 `json:"description"`
	Impact      string                 `json:"impact"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// EventLogEntry is a detailed event entry
type EventLogEntry struct {
	Tick        uint64                 `json:"tick"`
	EventType   string                 `json:"event_type"`
	Severity    string                 `json:"severity"`
	Description string                 `json:"description"`
	Agent       *int                   `json:"agent,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Finding is an observation with a suggested tuning change
type Finding struct {
	Priority       string `json:"priority"` // "High", "Medium", "Low"
	Category       string `json:"category"`
	Observation    string `json:"observation"`
	Recommendation string `json:"recommendation"`
}

// NewReportGenerator creates a generator for fl
func NewReportGenerator(fl *FlightLogger, config ReportConfig) *ReportGenerator {
	return &ReportGenerator{logger: fl, config: config}
}

// Generate builds the report for outcome
func (g *ReportGenerator) Generate(outcome FlightOutcome) *Report {
	summary := g.logger.GetSummary()
	events := g.logger.GetEvents()

	r := &Report{
		Metadata: ReportMetadata{
			RunID:       summary.RunID,
			GeneratedAt: time.Now(),
			RunStart:    summary.StartTime,
			RunEnd:      summary.StartTime.Add(summary.Duration),
			Duration:    summary.Duration.String(),
			Version:     "1.0",
		},
		Outcome:    outcome,
		Metrics:    metricStats(g.logger.GetMetrics()),
		Parameters: g.config.SimulationConfig,
	}

	r.Summary = g.executiveSummary(events, summary, outcome)
	r.Timeline = g.buildTimeline(events)
	for _, e := range events {
		if e.Type == EventTypeCrash {
			r.Crashes = append(r.Crashes, logEntry(e))
		}
	}
	if g.config.DetailLevel == "full" {
		for _, e := range events {
			r.EventLog = append(r.EventLog, logEntry(e))
		}
	}
	r.Findings = g.findings(r)
	return r
}

// Save writes r to the output directory and returns the file path
func (g *ReportGenerator) Save(r *Report) (string, error) {
	if err := os.MkdirAll(g.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := r.Metadata.GeneratedAt.Format("20060102_150405")
	base := filepath.Join(g.config.OutputDir, fmt.Sprintf("flight_%s_%s", shortID(r.Metadata.RunID), timestamp))

	var (
		path string
		data []byte
		err  error
	)
	switch g.config.Format {
	case "json":
		path = base + ".json"
		data, err = json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal report: %w", err)
		}
	case "html":
		path, data = base+".html", []byte(renderHTML(r))
	case "markdown":
		path, data = base+".md", []byte(g.renderMarkdown(r))
	default:
		return "", fmt.Errorf("unsupported format: %s", g.config.Format)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	logger.Successf("Flight report saved to: %s", path)
	return path, nil
}

func (g *ReportGenerator) executiveSummary(events []FlightEvent, summary FlightSummary, outcome FlightOutcome) ExecutiveSummary {
	exec := ExecutiveSummary{
		Crashes:   summary.EventCounts[EventTypeCrash],
		Splits:    summary.EventCounts[EventTypeSplit],
		Predicted: summary.EventCounts[EventTypePrediction],
	}
	if outcome.Drones > 0 {
		exec.SurvivalRate = float64(outcome.Survivors) / float64(outcome.Drones)
	}

	switch {
	case outcome.Survivors == 0 && outcome.Drones > 0:
		exec.Outcome = "Swarm lost"
	case outcome.RouteComplete && outcome.Survivors == outcome.Drones:
		exec.Outcome = "Route completed with no losses"
	case outcome.RouteComplete:
		exec.Outcome = fmt.Sprintf("Route completed with %d of %d drones", outcome.Survivors, outcome.Drones)
	default:
		exec.Outcome = fmt.Sprintf("%d of %d drones flying when the run ended (%s)", outcome.Survivors, outcome.Drones, outcome.Reason)
	}

	for _, e := range events {
		switch e.Type {
		case EventTypeRouteComplete, EventTypeLeader:
			exec.KeyEvents = append(exec.KeyEvents, e.Message)
		case EventTypeCrash, EventTypeSplit:
			if len(exec.KeyEvents) < 5 {
				exec.KeyEvents = append(exec.KeyEvents, e.Message)
			}
		}
	}
	return exec
}

func (g *ReportGenerator) buildTimeline(events []FlightEvent) []TimelineEntry {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Tick < events[j].Tick })

	var timeline []TimelineEntry
	for _, e := range events {
		if !significant(e) {
			continue
		}
		timeline = append(timeline, TimelineEntry{
			Tick:        e.Tick,
			ElapsedTime: formatDuration(tickDuration(e.Tick)),
			EventType:   e.Type,
			Description: e.Message,
			Impact:      impact(e),
			Details:     e.Details,
		})
	}
	return timeline
}

func (g *ReportGenerator) findings(r *Report) []Finding {
	var out []Finding
	if r.Summary.Crashes > 0 {
		out = append(out, Finding{
			Priority:       "High",
			Category:       "Collisions",
			Observation:    fmt.Sprintf("%d drones crashed during the flight.", r.Summary.Crashes),
			Recommendation: "Raise avoidance_force or avoidance_radius, or lower cruise_speed.",
		})
	}
	if r.Summary.Splits > 0 {
		out = append(out, Finding{
			Priority:       "Medium",
			Category:       "Cohesion",
			Observation:    fmt.Sprintf("The swarm split %d times.", r.Summary.Splits),
			Recommendation: "Increase neighbor_margin or alpha so stragglers are pulled back.",
		})
	}
	if r.Outcome.Predicted() && r.Summary.Crashes == 0 {
		out = append(out, Finding{
			Priority:       "Low",
			Category:       "Prediction",
			Observation:    "Crashes were forecast but none happened.",
			Recommendation: "The forecast horizon may be too long for the current tuning.",
		})
	}
	for _, m := range r.Metrics {
		if m.Name == "velocity_mismatch" && m.Mean > 0.5 {
			out = append(out, Finding{
				Priority:       "Medium",
				Category:       "Alignment",
				Observation:    fmt.Sprintf("Mean velocity mismatch was %.2f.", m.Mean),
				Recommendation: "Increase alignment_gain or damping.",
			})
		}
	}
	return out
}

func (g *ReportGenerator) renderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Flight Report\n\n")
	sb.WriteString(fmt.Sprintf("**Run ID:** %s\n", r.Metadata.RunID))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", r.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Wall time:** %s\n\n", r.Metadata.Duration))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("**Outcome:** %s\n\n", r.Summary.Outcome))
	sb.WriteString(fmt.Sprintf("- **Simulated time:** %s (%d ticks)\n", r.Outcome.SimulatedTime, r.Outcome.Ticks))
	sb.WriteString(fmt.Sprintf("- **Survivors:** %d/%d (%.1f%%)\n", r.Outcome.Survivors, r.Outcome.Drones, r.Summary.SurvivalRate*100))
	sb.WriteString(fmt.Sprintf("- **Crashes:** %d\n", r.Summary.Crashes))
	sb.WriteString(fmt.Sprintf("- **Splits:** %d\n", r.Summary.Splits))
	sb.WriteString(fmt.Sprintf("- **Waypoints reached:** %d\n", r.Outcome.WaypointsReached))
	if r.Outcome.NearMisses > 0 {
		sb.WriteString(fmt.Sprintf("- **Near misses:** %d (min clearance %.2fm)\n", r.Outcome.NearMisses, r.Outcome.MinClearance))
	}
	sb.WriteString("\n")

	if len(r.Summary.KeyEvents) > 0 {
		sb.WriteString("### Key Events\n")
		for _, e := range r.Summary.KeyEvents {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	if len(r.Metrics) > 0 {
		sb.WriteString("## Metrics\n\n")
		sb.WriteString("| Metric | Min | Mean | Max | Final |\n|---|---|---|---|---|\n")
		for _, m := range r.Metrics {
			sb.WriteString(fmt.Sprintf("| %s | %.3f | %.3f | %.3f | %.3f |\n", m.Name, m.Min, m.Mean, m.Max, m.Final))
		}
		sb.WriteString("\n")
	}

	if len(r.Outcome.LayerCounts) > 0 {
		sb.WriteString("## Final Layers\n\n")
		for _, layer := range sortedLayers(r.Outcome.LayerCounts) {
			sb.WriteString(fmt.Sprintf("- Layer %d: %d\n", layer, r.Outcome.LayerCounts[layer]))
		}
		sb.WriteString("\n")
	}

	if r.Outcome.Forecasts > 0 {
		sb.WriteString("## Prediction\n\n")
		sb.WriteString(fmt.Sprintf("- **Forecasts:** %d\n", r.Outcome.Forecasts))
		sb.WriteString(fmt.Sprintf("- **Predicted crashes:** %d\n", r.Summary.Predicted))
		sb.WriteString(fmt.Sprintf("- **Worker restarts:** %d\n\n", r.Outcome.ForecastRestarts))
	}

	if g.config.DetailLevel != "summary" && len(r.Timeline) > 0 {
		sb.WriteString("## Timeline\n\n")
		for _, t := range r.Timeline {
			sb.WriteString(fmt.Sprintf("- `%s` **%s** %s\n", t.ElapsedTime, t.Impact, t.Description))
		}
		sb.WriteString("\n")
	}

	if len(r.Findings) > 0 {
		sb.WriteString("## Findings\n\n")
		for _, f := range r.Findings {
			sb.WriteString(fmt.Sprintf("### %s (%s Priority)\n", f.Category, f.Priority))
			sb.WriteString(fmt.Sprintf("**Observation:** %s\n\n", f.Observation))
			sb.WriteString(fmt.Sprintf("**Recommendation:** %s\n\n", f.Recommendation))
		}
	}
	return sb.String()
}

func renderHTML(r *Report) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html>
<html>
<head>
	<title>Flight Report</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; background-color: #f5f5f5; }
		.container { background-color: white; padding: 30px; border-radius: 8px; }
		h1 { color: #333; border-bottom: 3px solid #007bff; padding-bottom: 10px; }
		h2 { color: #007bff; margin-top: 30px; }
		table { border-collapse: collapse; width: 100%; margin: 20px 0; }
		th, td { padding: 8px; text-align: left; border-bottom: 1px solid #ddd; }
		th { background-color: #007bff; color: white; }
		.priority-high { color: #dc3545; }
		.priority-medium { color: #ffc107; }
		.priority-low { color: #28a745; }
	</style>
</head>
<body>
<div class="container">
`)
	sb.WriteString("<h1>Flight Report</h1>\n")
	sb.WriteString(fmt.Sprintf("<p><strong>Run ID:</strong> %s</p>\n", html.EscapeString(r.Metadata.RunID)))
	sb.WriteString(fmt.Sprintf("<p><strong>Outcome:</strong> %s</p>\n", html.EscapeString(r.Summary.Outcome)))
	sb.WriteString(fmt.Sprintf("<p><strong>Survivors:</strong> %d/%d</p>\n", r.Outcome.Survivors, r.Outcome.Drones))

	if len(r.Metrics) > 0 {
		sb.WriteString("<h2>Metrics</h2>\n<table>\n<tr><th>Metric</th><th>Min</th><th>Mean</th><th>Max</th><th>Final</th></tr>\n")
		for _, m := range r.Metrics {
			sb.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%.3f</td><td>%.3f</td><td>%.3f</td><td>%.3f</td></tr>\n",
				html.EscapeString(m.Name), m.Min, m.Mean, m.Max, m.Final))
		}
		sb.WriteString("</table>\n")
	}

	if len(r.Crashes) > 0 {
		sb.WriteString("<h2>Crashes</h2>\n<table>\n<tr><th>Tick</th><th>Description</th></tr>\n")
		for _, c := range r.Crashes {
			sb.WriteString(fmt.Sprintf("<tr><td>%d</td><td>%s</td></tr>\n", c.Tick, html.EscapeString(c.Description)))
		}
		sb.WriteString("</table>\n")
	}

	if len(r.Findings) > 0 {
		sb.WriteString("<h2>Findings</h2>\n")
		for _, f := range r.Findings {
			sb.WriteString(fmt.Sprintf("<h3>%s <span class='priority-%s'>%s</span></h3>\n",
				html.EscapeString(f.Category), strings.ToLower(f.Priority), f.Priority))
			sb.WriteString(fmt.Sprintf("<p>%s</p>\n<p><em>%s</em></p>\n",
				html.EscapeString(f.Observation), html.EscapeString(f.Recommendation)))
		}
	}

	sb.WriteString("</div>\n</body>\n</html>\n")
	return sb.String()
}

func metricStats(all map[string]Metric) []MetricStats {
	out := make([]MetricStats, 0, len(all))
	for name, m := range all {
		if len(m.History) == 0 {
			continue
		}
		values := make([]float64, len(m.History))
		for i, p := range m.History {
			values[i] = p.Value
		}
		mean, std := stat.MeanStdDev(values, nil)
		if len(values) < 2 {
			std = 0
		}
		out = append(out, MetricStats{
			Name:    name,
			Unit:    m.Unit,
			Samples: len(values),
			Min:     floats.Min(values),
			Mean:    mean,
			Max:     floats.Max(values),
			StdDev:  std,
			Final:   m.Value,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func logEntry(e FlightEvent) EventLogEntry {
	return EventLogEntry{
		Tick:        e.Tick,
		EventType:   e.Type,
		Severity:    e.Severity,
		Description: e.Message,
		Agent:       e.AgentID,
		Details:     e.Details,
	}
}

func significant(e FlightEvent) bool {
	switch e.Type {
	case EventTypeSwarmStatus, EventTypeObstacle:
		return false
	}
	return e.Severity != SeverityDebug
}

func impact(e FlightEvent) string {
	switch e.Type {
	case EventTypeCrash, EventTypeLeader:
		return "High"
	case EventTypeSplit, EventTypePrediction, EventTypeNaN:
		return "Medium"
	default:
		return "Low"
	}
}

func sortedLayers(m map[int]int) []int {
	layers := make([]int, 0, len(m))
	for l := range m {
		layers = append(layers, l)
	}
	sort.Ints(layers)
	return layers
}

var tickLength = time.Duration(swarm.FixedDt * float64(time.Second))

func tickDuration(tick uint64) time.Duration {
	return time.Duration(tick) * tickLength
}
