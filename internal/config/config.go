package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/seatctl/internal/controller"
	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/hardware"
	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/metrics"
	"codeberg.org/mutker/seatctl/internal/mqtt"
	"codeberg.org/mutker/seatctl/internal/pid"
	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/telemetry"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultConfigPath = "/etc/seatctl.toml"
	DefaultEnvPrefix  = "SEATCTL"
	DefaultLogLevel   = "info"
	DefaultBackend    = hardware.BackendGPIO
	DefaultChip       = "gpiochip0"
	DefaultADCDevice  = "iio:device0"
)

// SeatLines are the GPIO line offsets wired to one seat.
type SeatLines struct {
	Button  int `mapstructure:"button"`
	HeaterA int `mapstructure:"heater_a"`
	HeaterB int `mapstructure:"heater_b"`
	Fault   int `mapstructure:"fault"`
}

type GPIOConfig struct {
	Chip      string    `mapstructure:"chip"`
	Driver    SeatLines `mapstructure:"driver"`
	Passenger SeatLines `mapstructure:"passenger"`
}

type ADCConfig struct {
	Root             string `mapstructure:"root"`
	Device           string `mapstructure:"device"`
	DriverChannel    int    `mapstructure:"driver_channel"`
	PassengerChannel int    `mapstructure:"passenger_channel"`
}

type SimConfig struct {
	DriverRaw    int     `mapstructure:"driver_raw"`
	PassengerRaw int     `mapstructure:"passenger_raw"`
	HeatRate     float64 `mapstructure:"heat_rate"`
	CoolRate     float64 `mapstructure:"cool_rate"`
}

type Config struct {
	LogLevel string `mapstructure:"log_level"`
	PIDFile  string `mapstructure:"pid_file"`
	Backend  string `mapstructure:"backend"`

	ButtonInterval    time.Duration `mapstructure:"button_interval"`
	SensorInterval    time.Duration `mapstructure:"sensor_interval"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	TelemetryInterval time.Duration `mapstructure:"telemetry_interval"`
	LoadInterval      time.Duration `mapstructure:"load_interval"`

	FaultMin int `mapstructure:"fault_min"`
	FaultMax int `mapstructure:"fault_max"`

	TelemetryOutput string `mapstructure:"telemetry_output"`

	Metrics   bool   `mapstructure:"metrics"`
	MetricsDB string `mapstructure:"metrics_db"`

	MQTTBroker string `mapstructure:"mqtt_broker"`
	MQTTTopic  string `mapstructure:"mqtt_topic"`
	RedisAddr  string `mapstructure:"redis_addr"`

	GPIO GPIOConfig `mapstructure:"gpio"`
	ADC  ADCConfig  `mapstructure:"adc"`
	Sim  SimConfig  `mapstructure:"sim"`

	// ConfigFile is the file the values were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	ctrl := controller.DefaultConfig()
	tele := telemetry.DefaultConfig()
	ambient := seat.RawFor(18)

	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("pid_file", pid.DefaultPath())
	v.SetDefault("backend", DefaultBackend)

	v.SetDefault("button_interval", ctrl.ButtonInterval)
	v.SetDefault("sensor_interval", ctrl.SensorInterval)
	v.SetDefault("settle_delay", ctrl.SettleDelay)
	v.SetDefault("telemetry_interval", tele.Interval)
	v.SetDefault("load_interval", ctrl.LoadInterval)
	v.SetDefault("fault_min", int(ctrl.FaultMin))
	v.SetDefault("fault_max", int(ctrl.FaultMax))

	v.SetDefault("telemetry_output", tele.Output)
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_db", metrics.DefaultConfig().DBPath)
	v.SetDefault("mqtt_broker", "")
	v.SetDefault("mqtt_topic", mqtt.DefaultTopicPrefix)
	v.SetDefault("redis_addr", "")

	v.SetDefault("gpio.chip", DefaultChip)
	v.SetDefault("gpio.driver.button", 17)
	v.SetDefault("gpio.driver.heater_a", 22)
	v.SetDefault("gpio.driver.heater_b", 23)
	v.SetDefault("gpio.driver.fault", 24)
	v.SetDefault("gpio.passenger.button", 27)
	v.SetDefault("gpio.passenger.heater_a", 5)
	v.SetDefault("gpio.passenger.heater_b", 6)
	v.SetDefault("gpio.passenger.fault", 13)

	v.SetDefault("adc.root", hardware.DefaultIIORoot)
	v.SetDefault("adc.device", DefaultADCDevice)
	v.SetDefault("adc.driver_channel", 0)
	v.SetDefault("adc.passenger_channel", 1)

	v.SetDefault("sim.driver_raw", ambient)
	v.SetDefault("sim.passenger_raw", ambient)
	v.SetDefault("sim.heat_rate", 0.5)
	v.SetDefault("sim.cool_rate", 0.05)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("seatctl", pflag.ContinueOnError)
	fs.String("config", "", "Path to the configuration file")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("backend", DefaultBackend, "Hardware backend (gpio, sim)")
	fs.String("pid-file", pid.DefaultPath(), "Path to the PID file")
	fs.String("telemetry-output", telemetry.StdoutOutput, "Telemetry device or file, - for stdout")
	fs.Bool("metrics", false, "Record status history to the metrics database")
	fs.String("metrics-db", metrics.DefaultConfig().DBPath, "Path to the metrics database")
	fs.String("mqtt-broker", "", "MQTT broker URL, empty to disable")
	fs.String("redis-addr", "", "Diagnostics bus address, empty to disable")
	return fs
}

// flagKeys maps flag names onto configuration keys.
var flagKeys = map[string]string{
	"log-level":        "log_level",
	"backend":          "backend",
	"pid-file":         "pid_file",
	"telemetry-output": "telemetry_output",
	"metrics":          "metrics",
	"metrics-db":       "metrics_db",
	"mqtt-broker":      "mqtt_broker",
	"redis-addr":       "redis_addr",
}

// Load reads the configuration from defaults, the config file, the
// environment and args, in increasing order of precedence.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, explicit := configPath(fs, o)
	file, err := readConfigFile(v, path, explicit)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.ConfigFile = file

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// configPath picks the file to read: --config, then the option, then
// <PREFIX>_CONFIG, then the default path.
func configPath(fs *pflag.FlagSet, o options) (string, bool) {
	if p, _ := fs.GetString("config"); p != "" {
		return p, true
	}
	if o.configPath != "" {
		return o.configPath, true
	}
	if p := os.Getenv(o.envPrefix + "_CONFIG"); p != "" {
		return p, true
	}
	return DefaultConfigPath, false
}

func readConfigFile(v *viper.Viper, path string, explicit bool) (string, error) {
	errFactory := errors.New()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return "", nil
		}
		return "", errFactory.Wrap(errors.ErrReadConfig, err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return "", errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return path, nil
}

// Validate checks the values every component will be built from.
func (c *Config) Validate() error {
	if !LogLevel(c.LogLevel).IsValid() {
		return errors.New().WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	switch c.Backend {
	case hardware.BackendGPIO, hardware.BackendSim:
	default:
		return errors.New().WithData(errors.ErrInvalidBackend, c.Backend)
	}

	if c.TelemetryInterval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, "telemetry_interval")
	}
	if err := c.Controller().Validate(); err != nil {
		return err
	}
	if err := c.Telemetry().Validate(); err != nil {
		return err
	}

	return c.MetricsConfig().Validate()
}

// Level returns the parsed log level.
func (c *Config) Level() logger.LogLevel {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.InfoLevel
	}
	return level
}

func (c *Config) Controller() controller.Config {
	return controller.Config{
		ButtonInterval: c.ButtonInterval,
		SensorInterval: c.SensorInterval,
		SettleDelay:    c.SettleDelay,
		LoadInterval:   c.LoadInterval,
		FaultMin:       seat.Temperature(c.FaultMin),
		FaultMax:       seat.Temperature(c.FaultMax),
	}
}

func (c *Config) Hardware() hardware.Config {
	return hardware.Config{
		Backend: c.Backend,
		GPIO: hardware.GPIOConfig{
			Chip:     c.GPIO.Chip,
			Consumer: "seatctl",
			Seats: [2]hardware.SeatLines{
				seat.Driver:    c.GPIO.Driver.lines(),
				seat.Passenger: c.GPIO.Passenger.lines(),
			},
		},
		ADC: hardware.ADCConfig{
			Root:   c.ADC.Root,
			Device: c.ADC.Device,
			Channels: [2]int{
				seat.Driver:    c.ADC.DriverChannel,
				seat.Passenger: c.ADC.PassengerChannel,
			},
		},
		Sim: hardware.SimConfig{
			Raw: [2]int{
				seat.Driver:    c.Sim.DriverRaw,
				seat.Passenger: c.Sim.PassengerRaw,
			},
			HeatRate: c.Sim.HeatRate,
			CoolRate: c.Sim.CoolRate,
		},
	}
}

func (l SeatLines) lines() hardware.SeatLines {
	return hardware.SeatLines{
		Button:  l.Button,
		HeaterA: l.HeaterA,
		HeaterB: l.HeaterB,
		Fault:   l.Fault,
	}
}

func (c *Config) Telemetry() telemetry.Config {
	return telemetry.Config{
		Output:   c.TelemetryOutput,
		Interval: c.TelemetryInterval,
	}
}

func (c *Config) MetricsConfig() metrics.Config {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = c.Metrics
	cfg.DBPath = c.MetricsDB
	return cfg
}

func (c *Config) MQTT() mqtt.Config {
	return mqtt.Config{
		Broker:      c.MQTTBroker,
		TopicPrefix: c.MQTTTopic,
	}
}
