package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

func GetConfig() Config {
	cfg := Config{
		LogLevel:     GetStringEnv("LOGLEVEL", DefaultLogLevel),
		LogDir:       GetRawStringEnv("LOG_DIR", DefaultLogDir),
		StatusPeriod: GetDurationMsEnv("STATUS_PERIOD_MS", DefaultStatusPeriod),

		DriveCfg:   GetDriveConfig(),
		SafetyCfg:  GetSafetyConfig(),
		LoopCfg:    GetLoopConfig(),
		GamepadCfg: GetGamepadConfig(),
		RangeCfg:   GetRangeConfig(),
		BatteryCfg: GetBatteryConfig(),
		MotorCfg:   GetMotorConfig(),
		SpeakerCfg: GetSpeakerConfig(),
	}

	cfg = Validate(cfg)
	log.Printf("app Config: \n%+v\n", cfg)
	return cfg
}

func GetDriveConfig() DriveConfig {
	return DriveConfig{
		CurveExponent: GetIntEnv("CURVE_EXPONENT", DefaultCurveExponent),
		DeadZone:      GetFloatEnv("DEADZONE_RADIUS", DefaultDeadZone),
		ThrottleScale: GetFloatEnv("THROTTLE_SCALE", DefaultThrottleScale),
		ThrottleLimit: GetFloatEnv("THROTTLE_LIMIT", DefaultThrottleLimit),
	}
}

func GetSafetyConfig() SafetyConfig {
	return SafetyConfig{
		BlockThreshold:     GetFloatEnv("BLOCK_THRESHOLD", DefaultBlockThreshold),
		AttenuateThreshold: GetFloatEnv("ATTENUATE_THRESHOLD", DefaultAttenuateThreshold),
		HysteresisTicks:    GetIntEnv("HYSTERESIS_TICKS", DefaultHysteresisTicks),
	}
}

func GetLoopConfig() LoopConfig {
	return LoopConfig{
		TickRate:      GetIntEnv("TICK_RATE_HZ", DefaultTickRate),
		InputTimeout:  GetDurationMsEnv("INPUT_TIMEOUT_MS", DefaultInputTimeoutMs*time.Millisecond),
		SensorTimeout: GetDurationMsEnv("SENSOR_TIMEOUT_MS", DefaultSensorTimeoutMs*time.Millisecond),
	}
}

func GetGamepadConfig() GamepadConfig {
	envPrefix := "GAMEPAD_"
	return GamepadConfig{
		Device:         GetRawStringEnv(envPrefix+"DEVICE", DefaultGamepadDevice),
		Path:           GetRawStringEnv(envPrefix+"PATH", DefaultGamepadPath),
		InvertX:        GetBoolEnv(envPrefix+"INVERT_X", DefaultInvertX),
		InvertY:        GetBoolEnv(envPrefix+"INVERT_Y", DefaultInvertY),
		TurnAxis:       GetIntEnv(envPrefix+"TURN_AXIS", DefaultTurnAxis),
		ForwardAxis:    GetIntEnv(envPrefix+"FORWARD_AXIS", DefaultForwardAxis),
		ReconnectDelay: GetDurationMsEnv(envPrefix+"RECONNECT_MS", DefaultReconnectDelayMs*time.Millisecond),
	}
}

func GetRangeConfig() RangeConfig {
	envPrefix := "RANGE_"
	return RangeConfig{
		Driver:     GetStringEnv(envPrefix+"DRIVER", DefaultRangeDriver),
		TriggerPin: GetIntEnv(envPrefix+"TRIGGER_PIN", DefaultTriggerPin),
		EchoPin:    GetIntEnv(envPrefix+"ECHO_PIN", DefaultEchoPin),
		MinRange:   GetFloatEnv(envPrefix+"MIN", DefaultMinRange),
		MaxRange:   GetFloatEnv(envPrefix+"MAX", DefaultMaxRange),
		MaxEcho:    GetDurationMsEnv(envPrefix+"MAX_ECHO_MS", DefaultMaxEchoMs*time.Millisecond),
	}
}

func GetBatteryConfig() BatteryConfig {
	envPrefix := "BATTERY_"
	return BatteryConfig{
		Enabled:     GetBoolEnv(envPrefix+"ENABLED", DefaultBatteryEnabled),
		SensePin:    GetIntEnv(envPrefix+"SENSE_PIN", DefaultBatterySensePin),
		LowTimeout:  GetDurationMsEnv(envPrefix+"LOW_TIMEOUT_MS", DefaultLowBatteryTimeout),
		CheckPeriod: GetDurationMsEnv(envPrefix+"CHECK_PERIOD_MS", DefaultBatteryPeriod),
	}
}

func GetMotorConfig() MotorConfig {
	return MotorConfig{
		MotorDriver:    GetStringEnv("MOTORDRIVER", DefaultMotorDriver),
		Address:        DefaultAddress,
		I2CDevice:      GetStringEnv("I2CDEVICE", DefaultI2CDevice),
		PwmFrequency:   GetIntEnv("PWM_FREQUENCY", DefaultPwmFrequency),
		PwmCycleLength: uint32(GetIntEnv("PWM_CYCLE_LENGTH", DefaultPwmCycleLength)),
		Left: GetMotorPins("LEFT_", MotorPins{
			Name:     "left",
			PwmPin:   DefaultLeftPwmPin,
			In1Pin:   DefaultLeftIn1Pin,
			In2Pin:   DefaultLeftIn2Pin,
			PosChan:  DefaultLeftPosChan,
			NegChan:  DefaultLeftNegChan,
			Inverted: DefaultLeftInverted,
		}),
		Right: GetMotorPins("RIGHT_", MotorPins{
			Name:     "right",
			PwmPin:   DefaultRightPwmPin,
			In1Pin:   DefaultRightIn1Pin,
			In2Pin:   DefaultRightIn2Pin,
			PosChan:  DefaultRightPosChan,
			NegChan:  DefaultRightNegChan,
			Inverted: DefaultRightInverted,
		}),
	}
}

func GetMotorPins(envPrefix string, defaults MotorPins) MotorPins {
	return MotorPins{
		Name:     defaults.Name,
		PwmPin:   GetIntEnv(envPrefix+"PWM_PIN", defaults.PwmPin),
		In1Pin:   GetIntEnv(envPrefix+"IN1_PIN", defaults.In1Pin),
		In2Pin:   GetIntEnv(envPrefix+"IN2_PIN", defaults.In2Pin),
		PosChan:  GetIntEnv(envPrefix+"POS_CHANNEL", defaults.PosChan),
		NegChan:  GetIntEnv(envPrefix+"NEG_CHANNEL", defaults.NegChan),
		Inverted: GetBoolEnv(envPrefix+"INVERTED", defaults.Inverted),
	}
}

func GetSpeakerConfig() SpeakerConfig {
	return SpeakerConfig{
		Enabled:  GetBoolEnv("SPEAKERENABLED", DefaultSpeakerEnabled),
		Device:   GetRawStringEnv("SPEAKERDEVICE", DefaultSpeakerDevice),
		SoundDir: GetRawStringEnv("SOUNDDIR", DefaultSoundDir),
	}
}

// Validate replaces values the control loop cannot run with and logs a
// warning for each correction.
func Validate(cfg Config) Config {
	if cfg.DriveCfg.CurveExponent < 1 || cfg.DriveCfg.CurveExponent%2 == 0 {
		log.Warnf("curve exponent %d is not a positive odd integer, using %d", cfg.DriveCfg.CurveExponent, DefaultCurveExponent)
		cfg.DriveCfg.CurveExponent = DefaultCurveExponent
	}
	if cfg.DriveCfg.DeadZone < 0 || cfg.DriveCfg.DeadZone >= 1 {
		log.Warnf("deadzone radius %.2f out of range [0,1), using %.2f", cfg.DriveCfg.DeadZone, DefaultDeadZone)
		cfg.DriveCfg.DeadZone = DefaultDeadZone
	}
	if cfg.DriveCfg.ThrottleScale <= 0 {
		log.Warnf("throttle scale %.2f must be positive, using %.2f", cfg.DriveCfg.ThrottleScale, DefaultThrottleScale)
		cfg.DriveCfg.ThrottleScale = DefaultThrottleScale
	}
	if cfg.DriveCfg.ThrottleLimit <= 0 || cfg.DriveCfg.ThrottleLimit > 1 {
		log.Warnf("throttle limit %.2f out of range (0,1], using %.2f", cfg.DriveCfg.ThrottleLimit, DefaultThrottleLimit)
		cfg.DriveCfg.ThrottleLimit = DefaultThrottleLimit
	}

	if cfg.SafetyCfg.BlockThreshold < 0 || cfg.SafetyCfg.BlockThreshold >= cfg.SafetyCfg.AttenuateThreshold {
		log.Warnf("safety thresholds block=%.2f attenuate=%.2f inconsistent, using defaults", cfg.SafetyCfg.BlockThreshold, cfg.SafetyCfg.AttenuateThreshold)
		cfg.SafetyCfg.BlockThreshold = DefaultBlockThreshold
		cfg.SafetyCfg.AttenuateThreshold = DefaultAttenuateThreshold
	}
	if cfg.SafetyCfg.HysteresisTicks < 1 {
		log.Warnf("hysteresis ticks %d must be at least 1, using 1", cfg.SafetyCfg.HysteresisTicks)
		cfg.SafetyCfg.HysteresisTicks = 1
	}

	if cfg.LoopCfg.TickRate < 1 || cfg.LoopCfg.TickRate > 1000 {
		log.Warnf("tick rate %dhz out of range, using %dhz", cfg.LoopCfg.TickRate, DefaultTickRate)
		cfg.LoopCfg.TickRate = DefaultTickRate
	}

	// Each bounded read must fit inside one tick so a stalled peripheral
	// cannot stretch the control cadence.
	period := cfg.LoopCfg.TickPeriod()
	if cfg.LoopCfg.InputTimeout <= 0 || cfg.LoopCfg.SensorTimeout <= 0 || cfg.LoopCfg.InputTimeout+cfg.LoopCfg.SensorTimeout >= period {
		log.Warnf("read timeouts input=%s sensor=%s do not fit in tick period %s, splitting the period", cfg.LoopCfg.InputTimeout, cfg.LoopCfg.SensorTimeout, period)
		cfg.LoopCfg.InputTimeout = period / 4
		cfg.LoopCfg.SensorTimeout = period / 2
	}

	if cfg.RangeCfg.MinRange < 0 || cfg.RangeCfg.MinRange >= cfg.RangeCfg.MaxRange {
		log.Warnf("range limits min=%.2f max=%.2f inconsistent, using defaults", cfg.RangeCfg.MinRange, cfg.RangeCfg.MaxRange)
		cfg.RangeCfg.MinRange = DefaultMinRange
		cfg.RangeCfg.MaxRange = DefaultMaxRange
	}
	if cfg.StatusPeriod <= 0 {
		log.Warnf("status period %s must be positive, using %s", cfg.StatusPeriod, DefaultStatusPeriod)
		cfg.StatusPeriod = DefaultStatusPeriod
	}
	if cfg.BatteryCfg.CheckPeriod <= 0 {
		log.Warnf("battery check period %s must be positive, using %s", cfg.BatteryCfg.CheckPeriod, DefaultBatteryPeriod)
		cfg.BatteryCfg.CheckPeriod = DefaultBatteryPeriod
	}
	if cfg.GamepadCfg.ReconnectDelay <= 0 {
		log.Warnf("gamepad reconnect delay %s must be positive, using %dms", cfg.GamepadCfg.ReconnectDelay, DefaultReconnectDelayMs)
		cfg.GamepadCfg.ReconnectDelay = DefaultReconnectDelayMs * time.Millisecond
	}
	if cfg.MotorCfg.PwmCycleLength == 0 {
		cfg.MotorCfg.PwmCycleLength = DefaultPwmCycleLength
	}
	return cfg
}

// LogFilePath names a log file after the process start time. An empty dir
// disables file logging.
func LogFilePath(dir string, start time.Time) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, start.Format(LogFileLayout)+".log")
}

func GetIntEnv(env string, defaultValue int) int {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseInt(strings.Trim(envValue, "\r"), 10, 32)
		if err != nil {
			log.Printf("warning:%s not parsed - error: %s\n", env, err)
			return defaultValue
		} else {
			return int(value)
		}
	}
}

func GetBoolEnv(env string, defaultValue bool) bool {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseBool(strings.Trim(envValue, "\r"))
		if err != nil {
			log.Printf("warning:%s not parsed - error: %s\n", env, err)
			return defaultValue
		} else {
			return value
		}
	}
}

func GetStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		return strings.ToLower(strings.Trim(envValue, "\r"))
	}
}

// GetRawStringEnv is GetStringEnv without lower casing, for device names and paths.
func GetRawStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	return strings.Trim(envValue, "\r")
}

func GetFloatEnv(env string, defaultValue float64) float64 {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseFloat(strings.Trim(envValue, "\r"), 64)
		if err != nil {
			log.Printf("warning:%s not parsed - error: %s\n", env, err)
			return defaultValue
		}
		return value
	}
}

func GetDurationMsEnv(env string, defaultValue time.Duration) time.Duration {
	_, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	return time.Duration(GetIntEnv(env, int(defaultValue/time.Millisecond))) * time.Millisecond
}
