// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Link      LinkConfig      `mapstructure:"link" yaml:"link"`
	Client    ClientConfig    `mapstructure:"client" yaml:"client"`
	Simulator SimulatorConfig `mapstructure:"simulator" yaml:"simulator"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // debug, info, warn, error
	File  string `mapstructure:"file" yaml:"file"`   // Log file path
}

// LinkConfig defines the byte stream to the controller
type LinkConfig struct {
	Type   string       `mapstructure:"type" yaml:"type"`     // "serial", "tcp", "local"
	Tcp    TcpConfig    `mapstructure:"tcp" yaml:"tcp"`       // Used if Type is "tcp"
	Serial SerialConfig `mapstructure:"serial" yaml:"serial"` // Used if Type is "serial"
}

// ClientConfig defines the protocol engine settings
type ClientConfig struct {
	Station       string        `mapstructure:"station" yaml:"station"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxBufferSize int           `mapstructure:"max_buffer_size" yaml:"max_buffer_size"`
	HexValues     bool          `mapstructure:"hex_values" yaml:"hex_values"` // numeric writes as 4-digit hex
}

// SimulatorConfig defines the local controller served by "serve"
type SimulatorConfig struct {
	Station     string            `mapstructure:"station" yaml:"station"`
	HexValues   bool              `mapstructure:"hex_values" yaml:"hex_values"` // WSS values as 4-digit hex
	Listen      LinkConfig        `mapstructure:"listen" yaml:"listen"`
	Persistence PersistenceConfig `mapstructure:"persistence" yaml:"persistence"`
}

// PersistenceConfig defines data storage settings
type PersistenceConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // "memory", "file", "mmap"
	Path string `mapstructure:"path" yaml:"path"` // File path for "file/mmap" type
}

// TcpConfig defines TCP settings
type TcpConfig struct {
	Address string        `mapstructure:"address" yaml:"address"` // e.g. "192.168.1.100:4001"
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"` // Dial and write timeout
}

// SerialConfig defines serial line settings
type SerialConfig struct {
	Device   string        `mapstructure:"device" yaml:"device"`
	BaudRate int           `mapstructure:"baud_rate" yaml:"baud_rate"`
	DataBits int           `mapstructure:"data_bits" yaml:"data_bits"`
	Parity   string        `mapstructure:"parity" yaml:"parity"`
	StopBits int           `mapstructure:"stop_bits" yaml:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"` // Read timeout

	// RS485 specific
	RS485              bool          `mapstructure:"rs485" yaml:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send" yaml:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send" yaml:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send" yaml:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send" yaml:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx" yaml:"rx_during_tx"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"link":      "link.type",
	"device":    "link.serial.device",
	"baud-rate": "link.serial.baud_rate",
	"parity":    "link.serial.parity",
	"address":   "link.tcp.address",
	"station":   "client.station",
	"timeout":   "client.timeout",
	"log-level": "log.level",
	"log-file":  "log.file",
}

// Default returns the configuration used when no file or flag says otherwise.
func Default() *Config {
	return &Config{
		Link: LinkConfig{
			Type: "serial",
			Tcp:  TcpConfig{Address: "127.0.0.1:4001", Timeout: 5 * time.Second},
			Serial: SerialConfig{
				Device:   "/dev/ttyUSB0",
				BaudRate: 9600,
				DataBits: 8,
				Parity:   "N",
				StopBits: 1,
				Timeout:  100 * time.Millisecond,
			},
		},
		Client: ClientConfig{
			Station:       "00",
			Timeout:       time.Second,
			MaxBufferSize: 4096,
			HexValues:     true,
		},
		Simulator: SimulatorConfig{
			Station:   "00",
			HexValues: true,
			Listen: LinkConfig{
				Type: "tcp",
				Tcp:  TcpConfig{Address: "0.0.0.0:4001"},
			},
			Persistence: PersistenceConfig{Type: "memory"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from file, then applies flags that were set
// on the command line. A missing file is only an error when configFile names
// one explicitly.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/cnetlink/")
		v.AddConfigPath("$HOME/.cnetlink")
		v.AddConfigPath(".")
	}

	setDefaults(v, Default())

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate / Fixups
	fixupSerial(&config.Link.Serial)
	fixupSerial(&config.Simulator.Listen.Serial)
	if err := validateLink(config.Link); err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}
	if config.Simulator.Listen.Type == "local" {
		return nil, fmt.Errorf("simulator.listen: local is not a listener type")
	}
	if err := validateLink(config.Simulator.Listen); err != nil {
		return nil, fmt.Errorf("simulator.listen: %w", err)
	}
	if config.Client.Timeout <= 0 {
		config.Client.Timeout = time.Second
	}

	return &config, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("link.type", d.Link.Type)
	v.SetDefault("link.tcp.address", d.Link.Tcp.Address)
	v.SetDefault("link.tcp.timeout", d.Link.Tcp.Timeout)
	v.SetDefault("link.serial.device", d.Link.Serial.Device)
	v.SetDefault("link.serial.baud_rate", d.Link.Serial.BaudRate)
	v.SetDefault("link.serial.data_bits", d.Link.Serial.DataBits)
	v.SetDefault("link.serial.parity", d.Link.Serial.Parity)
	v.SetDefault("link.serial.stop_bits", d.Link.Serial.StopBits)
	v.SetDefault("link.serial.timeout", d.Link.Serial.Timeout)
	v.SetDefault("client.station", d.Client.Station)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.max_buffer_size", d.Client.MaxBufferSize)
	v.SetDefault("client.hex_values", d.Client.HexValues)
	v.SetDefault("simulator.station", d.Simulator.Station)
	v.SetDefault("simulator.hex_values", d.Simulator.HexValues)
	v.SetDefault("simulator.listen.type", d.Simulator.Listen.Type)
	v.SetDefault("simulator.listen.tcp.address", d.Simulator.Listen.Tcp.Address)
	v.SetDefault("simulator.persistence.type", d.Simulator.Persistence.Type)
	v.SetDefault("log.level", d.Log.Level)
}

func validateLink(l LinkConfig) error {
	switch l.Type {
	case "serial":
		if l.Serial.Device == "" {
			return fmt.Errorf("serial device is not set")
		}
	case "tcp":
		if l.Tcp.Address == "" {
			return fmt.Errorf("tcp address is not set")
		}
	case "local":
	default:
		return fmt.Errorf("unknown link type %q", l.Type)
	}
	return nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Parity == "" {
		s.Parity = "N"
	}
	if s.Timeout == 0 {
		s.Timeout = 100 * time.Millisecond
	}
}
