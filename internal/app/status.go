package app

import (
	"context"
	"time"

	"github.com/mbojarska/tadpole/internal/vehicle"
	"github.com/prometheus/procfs"
	log "github.com/sirupsen/logrus"
)

type inputStatus struct {
	Connected bool
	Idle      time.Duration
}

type processStats struct {
	ResidentMemory int
	CPUTime        float64
}

// reportStatus logs loop counters and process usage every status period.
// It never fails the group: a missing /proc only drops the process fields.
func (a *App) reportStatus(ctx context.Context, logger *log.Entry) error {
	ticker := time.NewTicker(a.Cfg.StatusPeriod)
	defer ticker.Stop()

	proc, err := procfs.Self()
	if err != nil {
		logger.Warnf("procfs could not get process, reporting loop stats only: %s", err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.WithFields(statusFields(a.loop.Stats(), a.inputStatus(time.Now()), nil)).Info("final status")
			return ctx.Err()
		case now := <-ticker.C:
			var ps *processStats
			if err == nil {
				ps = readProcessStats(proc)
			}
			logger.WithFields(statusFields(a.loop.Stats(), a.inputStatus(now), ps)).Info("status")
		}
	}
}

func (a *App) inputStatus(now time.Time) inputStatus {
	return newInputStatus(a.gamepad.Connected(), a.gamepad.LastEvent(), now)
}

// newInputStatus reports how long the stick has been silent. A pad that has
// never sent an event is idle for zero.
func newInputStatus(connected bool, lastEvent, now time.Time) inputStatus {
	status := inputStatus{Connected: connected}
	if !lastEvent.IsZero() {
		status.Idle = now.Sub(lastEvent)
	}
	return status
}

func readProcessStats(proc procfs.Proc) *processStats {
	stat, err := proc.Stat()
	if err != nil {
		log.Debugf("failed reading process stat: %s", err)
		return nil
	}
	return &processStats{
		ResidentMemory: stat.ResidentMemory(),
		CPUTime:        stat.CPUTime(),
	}
}

func statusFields(stats vehicle.Stats, input inputStatus, ps *processStats) log.Fields {
	fields := log.Fields{
		"ticks":           stats.Ticks,
		"input_errors":    stats.InputErrors,
		"sensor_errors":   stats.SensorErrors,
		"actuator_errors": stats.ActuatorErrors,
		"zone":            stats.Zone.String(),
		"command":         stats.Last.String(),
		"input_connected": input.Connected,
		"input_idle":      input.Idle.Round(time.Millisecond).String(),
	}
	if ps != nil {
		fields["rss_bytes"] = ps.ResidentMemory
		fields["cpu_seconds"] = ps.CPUTime
	}
	return fields
}
