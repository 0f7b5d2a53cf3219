package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	AdminAddr       string        `mapstructure:"admin_addr" yaml:"admin_addr"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath    string        `mapstructure:"database_path" yaml:"database_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	MaxSessions  int `mapstructure:"max_sessions" yaml:"max_sessions"`
	MaxRooms     int `mapstructure:"max_rooms" yaml:"max_rooms"`
	RoomCapacity int `mapstructure:"room_capacity" yaml:"room_capacity"`

	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`
}

// TransferConfig bounds the file-transfer pipeline.
type TransferConfig struct {
	Workers           int           `mapstructure:"workers" yaml:"workers"`
	Backlog           int           `mapstructure:"backlog" yaml:"backlog"`
	MaxFileSize       uint64        `mapstructure:"max_file_size" yaml:"max_file_size"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions" yaml:"allowed_extensions"`
	ProcessDelay      time.Duration `mapstructure:"process_delay" yaml:"process_delay"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:            ":7667",
		AdminAddr:       "", // admin server disabled unless set
		LogLevel:        "info",
		DatabasePath:    "", // audit trail disabled unless set
		ShutdownTimeout: 5 * time.Second,
		MaxSessions:     64,
		MaxRooms:        16,
		RoomCapacity:    32,
		Transfer: TransferConfig{
			Workers:           4,
			Backlog:           32,
			MaxFileSize:       3 << 20, // 3 MiB
			AllowedExtensions: []string{".txt", ".pdf", ".png", ".jpg", ".zip"},
			ProcessDelay:      2 * time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.AdminAddr != "" {
		c.AdminAddr = other.AdminAddr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.MaxSessions != 0 {
		c.MaxSessions = other.MaxSessions
	}
	if other.MaxRooms != 0 {
		c.MaxRooms = other.MaxRooms
	}
	if other.RoomCapacity != 0 {
		c.RoomCapacity = other.RoomCapacity
	}
	if other.Transfer.Workers != 0 {
		c.Transfer.Workers = other.Transfer.Workers
	}
	if other.Transfer.Backlog != 0 {
		c.Transfer.Backlog = other.Transfer.Backlog
	}
	if other.Transfer.MaxFileSize != 0 {
		c.Transfer.MaxFileSize = other.Transfer.MaxFileSize
	}
	if len(other.Transfer.AllowedExtensions) != 0 {
		c.Transfer.AllowedExtensions = other.Transfer.AllowedExtensions
	}
	if other.Transfer.ProcessDelay != 0 {
		c.Transfer.ProcessDelay = other.Transfer.ProcessDelay
	}
}
