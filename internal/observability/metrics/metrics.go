package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates in-memory metrics counters and gauges for HTTP requests,
// reducer activity, presence signals, and journal writes. It coordinates
// concurrent writers via a RWMutex while exposing thread-safe gauges for the
// audience counters.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	actionCount     map[string]uint64
	signalCount     map[string]uint64
	journalAppends  map[string]uint64
	journalFailures map[string]uint64
	droppedSignals  atomic.Uint64
	activeFans      atomic.Int64
	viewers         atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers can
// immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		actionCount:     make(map[string]uint64),
		signalCount:     make(map[string]uint64),
		journalAppends:  make(map[string]uint64),
		journalFailures: make(map[string]uint64),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// ObserveAction records a dispatched reducer action keyed by action kind.
func (r *Recorder) ObserveAction(kind string) {
	normalized := normalizeName(kind)
	r.mu.Lock()
	r.actionCount[normalized]++
	r.mu.Unlock()
}

// ObserveSignal records a presence signal accepted by the translator keyed by
// signal type.
func (r *Recorder) ObserveSignal(signalType string) {
	normalized := normalizeName(signalType)
	r.mu.Lock()
	r.signalCount[normalized]++
	r.mu.Unlock()
}

// ObserveDroppedSignal counts a presence signal that was ignored because the
// type was unknown or the sender was not allowed to issue it.
func (r *Recorder) ObserveDroppedSignal() {
	r.droppedSignals.Add(1)
}

// ObserveJournalAppend records a successful journal write keyed by backend
// name (e.g. "memory", "postgres").
func (r *Recorder) ObserveJournalAppend(backend string) {
	normalized := normalizeName(backend)
	r.mu.Lock()
	r.journalAppends[normalized]++
	r.mu.Unlock()
}

// ObserveJournalFailure records a failed journal write keyed by backend name.
func (r *Recorder) ObserveJournalFailure(backend string) {
	normalized := normalizeName(backend)
	r.mu.Lock()
	r.journalFailures[normalized]++
	r.mu.Unlock()
}

// SetActiveFans updates the gauge of fans currently on the active-fan list.
func (r *Recorder) SetActiveFans(count int) {
	if count < 0 {
		count = 0
	}
	r.activeFans.Store(int64(count))
}

// SetViewers updates the audience size gauge reported by the platform.
func (r *Recorder) SetViewers(count int) {
	if count < 0 {
		count = 0
	}
	r.viewers.Store(int64(count))
}

// ActiveFans exposes the current active-fan gauge value.
func (r *Recorder) ActiveFans() int64 {
	return r.activeFans.Load()
}

// Viewers exposes the current viewer gauge value.
func (r *Recorder) Viewers() int64 {
	return r.viewers.Load()
}

// DroppedSignals exposes the dropped signal counter.
func (r *Recorder) DroppedSignals() uint64 {
	return r.droppedSignals.Load()
}

// ActionCounts returns a copy of the per-kind action counters for testing and
// reporting purposes.
func (r *Recorder) ActionCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]uint64, len(r.actionCount))
	for k, v := range r.actionCount {
		counts[k] = v
	}
	return counts
}

// SignalCounts returns a copy of the per-type signal counters.
func (r *Recorder) SignalCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]uint64, len(r.signalCount))
	for k, v := range r.signalCount {
		counts[k] = v
	}
	return counts
}

// JournalCounts returns copies of journal append and failure counters.
func (r *Recorder) JournalCounts() (appends map[string]uint64, failures map[string]uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appends = make(map[string]uint64, len(r.journalAppends))
	for k, v := range r.journalAppends {
		appends[k] = v
	}
	failures = make(map[string]uint64, len(r.journalFailures))
	for k, v := range r.journalFailures {
		failures[k] = v
	}
	return appends, failures
}

// Reset clears all counters and gauges on the recorder. It is intended for
// test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.actionCount = make(map[string]uint64)
	r.signalCount = make(map[string]uint64)
	r.journalAppends = make(map[string]uint64)
	r.journalFailures = make(map[string]uint64)
	r.droppedSignals.Store(0)
	r.activeFans.Store(0)
	r.viewers.Store(0)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting label
// sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	actionKinds := sortedKeys(r.actionCount)
	signalTypes := sortedKeys(r.signalCount)
	journalBackends := r.sortedJournalBackends()

	fmt.Fprintln(w, "# HELP stagecast_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE stagecast_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "stagecast_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP stagecast_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE stagecast_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "stagecast_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP stagecast_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE stagecast_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "stagecast_http_request_duration_seconds_count{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP stagecast_actions_total Reducer actions dispatched by kind")
	fmt.Fprintln(w, "# TYPE stagecast_actions_total counter")
	for _, kind := range actionKinds {
		count := r.actionCount[kind]
		fmt.Fprintf(w, "stagecast_actions_total{kind=\"%s\"} %d\n", kind, count)
	}

	fmt.Fprintln(w, "# HELP stagecast_signals_total Presence signals accepted by type")
	fmt.Fprintln(w, "# TYPE stagecast_signals_total counter")
	for _, signalType := range signalTypes {
		count := r.signalCount[signalType]
		fmt.Fprintf(w, "stagecast_signals_total{type=\"%s\"} %d\n", signalType, count)
	}

	fmt.Fprintln(w, "# HELP stagecast_signals_dropped_total Presence signals ignored because the type was unknown or the sender lacked authority")
	fmt.Fprintln(w, "# TYPE stagecast_signals_dropped_total counter")
	fmt.Fprintf(w, "stagecast_signals_dropped_total %d\n", r.droppedSignals.Load())

	fmt.Fprintln(w, "# HELP stagecast_journal_appends_total Journal writes by backend")
	fmt.Fprintln(w, "# TYPE stagecast_journal_appends_total counter")
	for _, backend := range journalBackends {
		count := r.journalAppends[backend]
		fmt.Fprintf(w, "stagecast_journal_appends_total{backend=\"%s\"} %d\n", backend, count)
	}

	fmt.Fprintln(w, "# HELP stagecast_journal_failures_total Failed journal writes by backend")
	fmt.Fprintln(w, "# TYPE stagecast_journal_failures_total counter")
	for _, backend := range journalBackends {
		count := r.journalFailures[backend]
		fmt.Fprintf(w, "stagecast_journal_failures_total{backend=\"%s\"} %d\n", backend, count)
	}

	fmt.Fprintln(w, "# HELP stagecast_active_fans Current number of fans on the active-fan list")
	fmt.Fprintln(w, "# TYPE stagecast_active_fans gauge")
	fmt.Fprintf(w, "stagecast_active_fans %d\n", r.activeFans.Load())

	fmt.Fprintln(w, "# HELP stagecast_viewers Current audience size reported by the platform")
	fmt.Fprintln(w, "# TYPE stagecast_viewers gauge")
	fmt.Fprintf(w, "stagecast_viewers %d\n", r.viewers.Load())
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedJournalBackends() []string {
	seen := make(map[string]struct{}, len(r.journalAppends)+len(r.journalFailures))
	for backend := range r.journalAppends {
		seen[backend] = struct{}{}
	}
	for backend := range r.journalFailures {
		seen[backend] = struct{}{}
	}
	backends := make([]string, 0, len(seen))
	for backend := range seen {
		backends = append(backends, backend)
	}
	sort.Strings(backends)
	return backends
}

func sortedKeys(counts map[string]uint64) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
			continue
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

func normalizeName(name string) string {
	normalized := strings.TrimSpace(name)
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// ObserveAction records a dispatched action on the default recorder.
func ObserveAction(kind string) {
	defaultRecorder.ObserveAction(kind)
}

// ObserveSignal records an accepted signal on the default recorder.
func ObserveSignal(signalType string) {
	defaultRecorder.ObserveSignal(signalType)
}

// ObserveDroppedSignal counts a dropped signal on the default recorder.
func ObserveDroppedSignal() {
	defaultRecorder.ObserveDroppedSignal()
}

// SetActiveFans updates the active-fan gauge on the default recorder.
func SetActiveFans(count int) {
	defaultRecorder.SetActiveFans(count)
}

// SetViewers updates the viewer gauge on the default recorder.
func SetViewers(count int) {
	defaultRecorder.SetViewers(count)
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
