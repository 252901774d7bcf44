package speaker

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/mbojarska/tadpole/internal/config"
	"github.com/mbojarska/tadpole/internal/vehicle"
	log "github.com/sirupsen/logrus"
)

const (
	SoundStartup  = "startup"
	SoundShutdown = "shutdown"

	QueueSize = 16
)

var soundMap = map[string]string{
	SoundStartup:             "startup.wav",
	SoundShutdown:            "shutting_down.wav",
	vehicle.EventObstacle:    "obstacle.wav",
	vehicle.EventClear:       "clear.wav",
	vehicle.EventLowBattery:  "low_battery.wav",
	vehicle.EventBatteryOkay: "battery_ok.wav",
}

type player func(ctx context.Context, device, path string) error

type Speaker struct {
	soundChannel chan string
	cfg          config.SpeakerConfig
	play         player
}

func NewSpeaker(cfg config.SpeakerConfig) *Speaker {
	return &Speaker{
		soundChannel: make(chan string, QueueSize),
		cfg:          cfg,
		play:         aplay,
	}
}

// Notify queues a sound without blocking; sounds are dropped while the queue
// is full.
func (s *Speaker) Notify(sound string) {
	if !s.cfg.Enabled {
		return
	}
	select {
	case s.soundChannel <- sound:
	default:
		log.Debugf("speaker busy, dropping %s sound", sound)
	}
}

func (s *Speaker) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		log.Println("speaker disabled")
		<-ctx.Done()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("speaker done due to ctx")
			return nil
		case sound := <-s.soundChannel:
			err := s.Play(ctx, sound)
			if err != nil {
				log.Warnf("failed to play sound - %s", err)
			}
		}
	}
}

func (s *Speaker) Play(ctx context.Context, sound string) error {
	if !s.cfg.Enabled {
		log.Debugf("speaker disabled, not playing %s sound", sound)
		return nil
	}

	file, ok := soundMap[sound]
	if !ok {
		return fmt.Errorf("sound not found: %s", sound)
	}

	log.Debugf("start playing %s sound", sound)
	defer log.Debugf("finished playing %s sound", sound)

	return s.play(ctx, s.cfg.Device, filepath.Join(s.cfg.SoundDir, file))
}

func aplay(ctx context.Context, device, path string) error {
	args := []string{"-q"}
	if device != "" {
		args = append(args, "-D", device)
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, "aplay", args...)
	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("error starting audio playback - %w", err)
	}
	err = cmd.Wait()
	if err != nil {
		return fmt.Errorf("error during audio playback - %w", err)
	}
	return nil
}
