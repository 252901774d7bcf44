package config

import "time"

const (
	AppEnvBase = "TADPOLE_"

	DefaultLogLevel     = "info"
	DefaultLogDir       = ""
	LogFileLayout       = "06-01-02_15-04-05"
	DefaultStatusPeriod = 10 * time.Second

	// Default Drive Options
	DefaultCurveExponent = 3
	DefaultDeadZone      = 0.05
	DefaultThrottleScale = 1.0
	DefaultThrottleLimit = 1.0

	// Default Safety Options
	DefaultBlockThreshold     = 0.10 // meters
	DefaultAttenuateThreshold = 0.40 // meters
	DefaultHysteresisTicks    = 2

	// Default Loop Options
	DefaultTickRate        = 20 // hz
	DefaultInputTimeoutMs  = 20
	DefaultSensorTimeoutMs = 25

	// Default Gamepad Options
	DefaultGamepadDevice    = "Xbox Wireless Controller"
	DefaultGamepadPath      = ""
	DefaultInvertX          = false
	DefaultInvertY          = true
	DefaultTurnAxis         = 2 // ABS_Z, right stick X on xpad/xpadneo
	DefaultForwardAxis      = 5 // ABS_RZ, right stick Y
	DefaultReconnectDelayMs = 1000

	// Default Range Sensor Options
	DefaultRangeDriver = "hcsr04"
	DefaultTriggerPin  = 23
	DefaultEchoPin     = 24
	DefaultMinRange    = 0.02
	DefaultMaxRange    = 4.0
	DefaultMaxEchoMs   = 25

	// Default Battery Options
	DefaultBatteryEnabled    = true
	DefaultBatterySensePin   = 5
	DefaultLowBatteryTimeout = 5 * time.Second
	DefaultBatteryPeriod     = 1 * time.Second

	// Default Motor Options
	DefaultMotorDriver = "pipwm"
	DefaultAddress     = 0x40
	DefaultI2CDevice   = "/dev/i2c-1"

	DefaultLeftPwmPin     = 12
	DefaultLeftIn1Pin     = 16
	DefaultLeftIn2Pin     = 20
	DefaultLeftInverted   = true
	DefaultRightPwmPin    = 13
	DefaultRightIn1Pin    = 21
	DefaultRightIn2Pin    = 26
	DefaultRightInverted  = false
	DefaultLeftPosChan    = 0
	DefaultLeftNegChan    = 1
	DefaultRightPosChan   = 2
	DefaultRightNegChan   = 3
	DefaultPwmFrequency   = 100 // hz
	DefaultPwmCycleLength = 100

	// Default Speaker Options
	DefaultSpeakerEnabled = false
	DefaultSpeakerDevice  = ""
	DefaultSoundDir       = "./sounds"
)

type Config struct {
	LogLevel     string
	LogDir       string
	StatusPeriod time.Duration

	DriveCfg   DriveConfig
	SafetyCfg  SafetyConfig
	LoopCfg    LoopConfig
	GamepadCfg GamepadConfig
	RangeCfg   RangeConfig
	BatteryCfg BatteryConfig
	MotorCfg   MotorConfig
	SpeakerCfg SpeakerConfig
}

type DriveConfig struct {
	CurveExponent int
	DeadZone      float64
	ThrottleScale float64
	ThrottleLimit float64
}

type SafetyConfig struct {
	BlockThreshold     float64
	AttenuateThreshold float64
	HysteresisTicks    int
}

type LoopConfig struct {
	TickRate      int
	InputTimeout  time.Duration
	SensorTimeout time.Duration
}

// TickPeriod is the duration of one control cycle.
func (c LoopConfig) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

type GamepadConfig struct {
	Device         string
	Path           string
	InvertX        bool
	InvertY        bool
	TurnAxis       int
	ForwardAxis    int
	ReconnectDelay time.Duration
}

type RangeConfig struct {
	Driver     string
	TriggerPin int
	EchoPin    int
	MinRange   float64
	MaxRange   float64
	MaxEcho    time.Duration
}

type BatteryConfig struct {
	Enabled     bool
	SensePin    int
	LowTimeout  time.Duration
	CheckPeriod time.Duration
}

type MotorConfig struct {
	MotorDriver    string
	Address        byte
	I2CDevice      string
	PwmFrequency   int
	PwmCycleLength uint32
	Left           MotorPins
	Right          MotorPins
}

type MotorPins struct {
	Name     string
	PwmPin   int
	In1Pin   int
	In2Pin   int
	PosChan  int
	NegChan  int
	Inverted bool
}

type SpeakerConfig struct {
	Enabled  bool
	Device   string
	SoundDir string
}
