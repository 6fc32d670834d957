package server

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/hazz-dev/statusroll/internal/checker"
	"github.com/hazz-dev/statusroll/internal/history"
	"github.com/hazz-dev/statusroll/internal/probe"
)

// handleMetrics exposes today's summaries in the Prometheus text format.
// Probes without a check today are omitted.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	specs, err := s.src.Probes()
	if err != nil {
		s.logger.Error("resolving probes", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	today, err := s.loadDay(r, history.DateKey(s.now()))
	if err != nil {
		s.logger.Error("loading today's record", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	for _, mf := range buildFamilies(specs, today) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			s.logger.Warn("writing metrics", "error", err)
			return
		}
	}
}

func buildFamilies(specs []probe.Spec, rec *history.DailyRecord) []*dto.MetricFamily {
	up := gaugeFamily("statusroll_probe_up", "Whether the latest check today was up or degraded (1) or down (0).")
	uptime := gaugeFamily("statusroll_probe_uptime_percent", "Share of today's checks that were up or degraded.")
	avg := gaugeFamily("statusroll_probe_response_time_avg_ms", "Mean response time today in milliseconds.")
	p95 := gaugeFamily("statusroll_probe_response_time_p95_ms", "95th percentile response time today in milliseconds.")
	checks := gaugeFamily("statusroll_probe_checks", "Checks recorded today by outcome.")

	if rec == nil {
		return nil
	}
	for _, spec := range specs {
		sum, ok := rec.Summary[spec.ID]
		if !ok {
			continue
		}
		labels := probeLabels(spec)

		if res, _, ok := latestResult(rec, spec.ID); ok {
			v := 0.0
			if res.Status != checker.StatusDown {
				v = 1
			}
			up.Metric = append(up.Metric, gauge(labels, v))
		}
		uptime.Metric = append(uptime.Metric, gauge(labels, sum.UptimePercent))
		avg.Metric = append(avg.Metric, gauge(labels, float64(sum.AvgResponseTimeMs)))
		p95.Metric = append(p95.Metric, gauge(labels, float64(sum.P95ResponseTimeMs)))
		counts := []struct {
			status checker.Status
			n      int
		}{
			{checker.StatusUp, sum.UpChecks},
			{checker.StatusDegraded, sum.DegradedChecks},
			{checker.StatusDown, sum.DownChecks},
		}
		for _, c := range counts {
			l := append(probeLabels(spec), label("status", string(c.status)))
			checks.Metric = append(checks.Metric, gauge(l, float64(c.n)))
		}
	}

	var out []*dto.MetricFamily
	for _, mf := range []*dto.MetricFamily{up, uptime, avg, p95, checks} {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: ptr(name),
		Help: ptr(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(labels []*dto.LabelPair, v float64) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: ptr(v)},
	}
}

func probeLabels(spec probe.Spec) []*dto.LabelPair {
	return []*dto.LabelPair{
		label("probe", spec.ID),
		label("group", spec.Group),
		label("kind", string(spec.Kind)),
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: ptr(name), Value: ptr(value)}
}

func ptr[T any](v T) *T { return &v }
