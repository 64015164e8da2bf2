package metrics

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/bazari/settlement/internal/escrow"
	"github.com/bazari/settlement/internal/reputation"
)

// Recorder writes per-run worker metrics to InfluxDB for operator
// monitoring. A nil *Recorder is valid and drops everything, so the daemons
// run unchanged without a metrics backend.
type Recorder struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

// NewRecorder connects to InfluxDB. Returns nil when url is empty.
func NewRecorder(url, token, org, bucket string) *Recorder {
	if url == "" {
		return nil
	}
	client := influxdb2.NewClient(url, token)
	return &Recorder{
		client: client,
		write:  client.WriteAPIBlocking(org, bucket),
	}
}

// RecordSync writes one point per reconciliation run.
func (r *Recorder) RecordSync(ctx context.Context, report *reputation.Report) error {
	if r == nil {
		return nil
	}

	point := influxdb2.NewPoint("reputation_sync",
		map[string]string{
			"dry_run": boolTag(report.DryRun),
		},
		map[string]interface{}{
			"processed":   report.Processed,
			"updated":     report.Updated,
			"noops":       report.Noops,
			"skipped":     report.Skipped,
			"errors":      report.Errors,
			"duration_ms": report.Duration.Milliseconds(),
		},
		report.StartedAt,
	)
	return r.write.WritePoint(ctx, point)
}

// RecordSweep writes one point per escrow auto-release sweep.
func (r *Recorder) RecordSweep(ctx context.Context, stats escrow.SweepStats) error {
	if r == nil {
		return nil
	}

	point := influxdb2.NewPoint("escrow_sweep",
		nil,
		map[string]interface{}{
			"checked":  stats.Checked,
			"released": stats.Released,
			"skipped":  stats.Skipped,
			"errors":   stats.Errors,
		},
		stats.LastRun,
	)
	return r.write.WritePoint(ctx, point)
}

// Close flushes and shuts down the client.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.client.Close()
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
