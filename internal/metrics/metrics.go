package metrics

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

// Registry tracks engine metrics for a single running process.
type Registry struct {
	jobName string

	mu sync.Mutex

	ticksCompleted   uint64
	ticksLockSkipped uint64
	ticksPaused      uint64
	ticksFailed      uint64

	leadsProcessed uint64

	touchesSent   map[domain.Channel]uint64
	touchesFailed map[domain.Channel]uint64

	skipsOffHours      uint64
	skipsSpacing       uint64
	skipsCooldown      uint64
	skipsQuota         uint64
	skipsDuplicate     uint64
	sequencesCompleted uint64
	leadsNoContactInfo uint64

	callbacksApplied uint64
	callbacksUnknown uint64

	tickDuration     histogram
	dispatchDuration histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	count   uint64
	sum     float64
}

// DefaultBuckets spans sub-second dispatches through the tick deadline.
var DefaultBuckets = []time.Duration{
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	5 * time.Second,
	15 * time.Second,
	time.Minute,
	5 * time.Minute,
}

// New constructs a Registry for a job name and histogram bucket set. A nil
// bucket set falls back to DefaultBuckets.
func New(jobName string, buckets []time.Duration) *Registry {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	bucketSeconds := make([]float64, len(buckets))
	for i, b := range buckets {
		bucketSeconds[i] = b.Seconds()
	}
	return &Registry{
		jobName:          jobName,
		touchesSent:      make(map[domain.Channel]uint64),
		touchesFailed:    make(map[domain.Channel]uint64),
		tickDuration:     newHistogram(bucketSeconds),
		dispatchDuration: newHistogram(bucketSeconds),
	}
}

// ObserveTick records one scheduler invocation outcome and its duration.
func (r *Registry) ObserveTick(outcome string, duration time.Duration) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tickDuration.observe(duration.Seconds())
	switch outcome {
	case "completed":
		r.ticksCompleted++
	case "lock_skipped":
		r.ticksLockSkipped++
	case "paused":
		r.ticksPaused++
	case "failed":
		r.ticksFailed++
	}
}

// ObserveLead records one processed lead and the verdict it received.
func (r *Registry) ObserveLead(reason string) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.leadsProcessed++
	switch reason {
	case "off_hours":
		r.skipsOffHours++
	case "spacing":
		r.skipsSpacing++
	case "cooldown":
		r.skipsCooldown++
	case "quota":
		r.skipsQuota++
	case "duplicate":
		r.skipsDuplicate++
	case "sequence_complete":
		r.sequencesCompleted++
	case "no_contact_info":
		r.leadsNoContactInfo++
	}
}

// ObserveTouch records one dispatched touch by channel and delivery status.
func (r *Registry) ObserveTouch(channel domain.Channel, status domain.TouchStatus, duration time.Duration) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.dispatchDuration.observe(duration.Seconds())
	switch status {
	case domain.TouchSent:
		r.touchesSent[channel]++
	case domain.TouchFailed:
		r.touchesFailed[channel]++
	}
}

// ObserveCallback records one delivery callback by whether it matched a touch.
func (r *Registry) ObserveCallback(applied bool) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if applied {
		r.callbacksApplied++
	} else {
		r.callbacksUnknown++
	}
}

// WritePrometheus writes current metrics in Prometheus exposition format.
func (r *Registry) WritePrometheus(w io.Writer) {
	if r == nil {
		return
	}

	r.mu.Lock()
	jobName := r.jobName
	ticksCompleted := r.ticksCompleted
	ticksLockSkipped := r.ticksLockSkipped
	ticksPaused := r.ticksPaused
	ticksFailed := r.ticksFailed
	leadsProcessed := r.leadsProcessed
	touchesSent := copyChannelCounts(r.touchesSent)
	touchesFailed := copyChannelCounts(r.touchesFailed)
	skipsOffHours := r.skipsOffHours
	skipsSpacing := r.skipsSpacing
	skipsCooldown := r.skipsCooldown
	skipsQuota := r.skipsQuota
	skipsDuplicate := r.skipsDuplicate
	sequencesCompleted := r.sequencesCompleted
	leadsNoContactInfo := r.leadsNoContactInfo
	callbacksApplied := r.callbacksApplied
	callbacksUnknown := r.callbacksUnknown
	tickDuration := r.tickDuration.snapshot()
	dispatchDuration := r.dispatchDuration.snapshot()
	r.mu.Unlock()

	jobLabel := fmt.Sprintf("job=%q", jobName)

	fmt.Fprintf(w, "# HELP outreach_ticks_total Scheduler invocations by outcome.\n")
	fmt.Fprintf(w, "# TYPE outreach_ticks_total counter\n")
	fmt.Fprintf(w, "outreach_ticks_total{%s,outcome=%q} %d\n", jobLabel, "completed", ticksCompleted)
	fmt.Fprintf(w, "outreach_ticks_total{%s,outcome=%q} %d\n", jobLabel, "lock_skipped", ticksLockSkipped)
	fmt.Fprintf(w, "outreach_ticks_total{%s,outcome=%q} %d\n", jobLabel, "paused", ticksPaused)
	fmt.Fprintf(w, "outreach_ticks_total{%s,outcome=%q} %d\n", jobLabel, "failed", ticksFailed)

	fmt.Fprintf(w, "# HELP outreach_leads_processed_total Leads evaluated by the cadence engine.\n")
	fmt.Fprintf(w, "# TYPE outreach_leads_processed_total counter\n")
	fmt.Fprintf(w, "outreach_leads_processed_total{%s} %d\n", jobLabel, leadsProcessed)

	fmt.Fprintf(w, "# HELP outreach_touches_total Touches dispatched by channel and status.\n")
	fmt.Fprintf(w, "# TYPE outreach_touches_total counter\n")
	for _, channel := range []domain.Channel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelVoice} {
		fmt.Fprintf(w, "outreach_touches_total{%s,channel=%q,status=%q} %d\n", jobLabel, channel, "sent", touchesSent[channel])
		fmt.Fprintf(w, "outreach_touches_total{%s,channel=%q,status=%q} %d\n", jobLabel, channel, "failed", touchesFailed[channel])
	}

	fmt.Fprintf(w, "# HELP outreach_lead_skips_total Leads skipped by reason.\n")
	fmt.Fprintf(w, "# TYPE outreach_lead_skips_total counter\n")
	fmt.Fprintf(w, "outreach_lead_skips_total{%s,reason=%q} %d\n", jobLabel, "off_hours", skipsOffHours)
	fmt.Fprintf(w, "outreach_lead_skips_total{%s,reason=%q} %d\n", jobLabel, "spacing", skipsSpacing)
	fmt.Fprintf(w, "outreach_lead_skips_total{%s,reason=%q} %d\n", jobLabel, "cooldown", skipsCooldown)
	fmt.Fprintf(w, "outreach_lead_skips_total{%s,reason=%q} %d\n", jobLabel, "quota", skipsQuota)
	fmt.Fprintf(w, "outreach_lead_skips_total{%s,reason=%q} %d\n", jobLabel, "duplicate", skipsDuplicate)

	fmt.Fprintf(w, "# HELP outreach_sequences_completed_total Leads that exhausted their cadence.\n")
	fmt.Fprintf(w, "# TYPE outreach_sequences_completed_total counter\n")
	fmt.Fprintf(w, "outreach_sequences_completed_total{%s} %d\n", jobLabel, sequencesCompleted)

	fmt.Fprintf(w, "# HELP outreach_no_contact_info_total Leads parked for missing contact info.\n")
	fmt.Fprintf(w, "# TYPE outreach_no_contact_info_total counter\n")
	fmt.Fprintf(w, "outreach_no_contact_info_total{%s} %d\n", jobLabel, leadsNoContactInfo)

	fmt.Fprintf(w, "# HELP outreach_callbacks_total Delivery callbacks by match result.\n")
	fmt.Fprintf(w, "# TYPE outreach_callbacks_total counter\n")
	fmt.Fprintf(w, "outreach_callbacks_total{%s,result=%q} %d\n", jobLabel, "applied", callbacksApplied)
	fmt.Fprintf(w, "outreach_callbacks_total{%s,result=%q} %d\n", jobLabel, "unknown", callbacksUnknown)

	writeHistogram(w, "outreach_tick_duration_seconds", "Scheduler tick duration in seconds.", jobLabel, tickDuration)
	writeHistogram(w, "outreach_dispatch_duration_seconds", "Dispatch duration in seconds.", jobLabel, dispatchDuration)
}

func copyChannelCounts(src map[domain.Channel]uint64) map[domain.Channel]uint64 {
	out := make(map[domain.Channel]uint64, len(src))
	for channel, count := range src {
		out[channel] = count
	}
	return out
}

func newHistogram(buckets []float64) histogram {
	return histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h histogram) snapshot() histogram {
	return histogram{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		count:   h.count,
		sum:     h.sum,
	}
}

func writeHistogram(w io.Writer, name, help, jobLabel string, h histogram) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s histogram\n", name)
	for i, bound := range h.buckets {
		fmt.Fprintf(
			w,
			"%s_bucket{%s,le=%q} %d\n",
			name,
			jobLabel,
			formatFloat(bound),
			h.counts[i],
		)
	}
	fmt.Fprintf(w, "%s_bucket{%s,le=%q} %d\n", name, jobLabel, "+Inf", h.count)
	fmt.Fprintf(w, "%s_sum{%s} %s\n", name, jobLabel, formatFloat(h.sum))
	fmt.Fprintf(w, "%s_count{%s} %d\n", name, jobLabel, h.count)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
