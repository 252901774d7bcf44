package battery

import (
	"context"
	"sync"
	"time"

	"github.com/mbojarska/tadpole/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

// Monitor decides battery health from the sense line. The charge module
// holds the line high while the cell is above its discharge cutoff; a low
// level only counts once it has lasted longer than lowTimeout, so brief
// dips under motor load do not trip it. It starts unhealthy and needs one
// high reading before the motors may run.
type Monitor struct {
	lowTimeout time.Duration
	lastOk     time.Time
	ok         bool
}

func NewMonitor(lowTimeout time.Duration, now time.Time) Monitor {
	return Monitor{
		lowTimeout: lowTimeout,
		lastOk:     now,
		ok:         false,
	}
}

func (m *Monitor) Observe(high bool, now time.Time) bool {
	if high {
		m.lastOk = now
		m.ok = true
	} else if now.Sub(m.lastOk) > m.lowTimeout {
		m.ok = false
	}
	return m.ok
}

type sensePin interface {
	Read() rpio.State
}

// Guard polls the battery sense pin and engages when the battery is low.
// rpio must already be open.
type Guard struct {
	cfg config.BatteryConfig
	pin sensePin

	lock    sync.RWMutex
	monitor Monitor
}

func NewGuard(cfg config.BatteryConfig) *Guard {
	return &Guard{
		cfg:     cfg,
		pin:     rpio.Pin(cfg.SensePin),
		monitor: NewMonitor(cfg.LowTimeout, time.Now()),
	}
}

func (g *Guard) Init() error {
	pin := rpio.Pin(g.cfg.SensePin)
	pin.Input()
	pin.PullDown()
	log.Printf("battery guard watching pin %d\n", g.cfg.SensePin)

	g.check(time.Now())
	if g.Engaged() {
		log.Warn("battery sense line low at startup, holding motors in standby")
	}
	return nil
}

func (g *Guard) Start(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.CheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping battery guard: %s\n", ctx.Err().Error())
			return ctx.Err()
		case now := <-ticker.C:
			g.check(now)
		}
	}
}

// Engaged reports a low battery.
func (g *Guard) Engaged() bool {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return !g.monitor.ok
}

func (g *Guard) check(now time.Time) {
	high := g.pin.Read() == rpio.High

	g.lock.Lock()
	defer g.lock.Unlock()
	wasOk := g.monitor.ok
	ok := g.monitor.Observe(high, now)
	if wasOk && !ok {
		log.Warnf("battery low for over %s, switching to standby", g.cfg.LowTimeout)
	} else if !wasOk && ok {
		log.Info("battery recovered")
	}
}
