package relay

import "time"

// Config represents the serve subcommand's server settings.
type Config struct {
	Addr                string        `help:"Event server listen address" default:":8001" env:"JOYRELAY_ADDR"`
	DeviceRetryInterval time.Duration `help:"Interval between device connection attempts; 0 makes a missing device fatal" default:"2s" env:"JOYRELAY_DEVICE_RETRY_INTERVAL"`
	WriteTimeout        time.Duration `help:"Deadline for writing one frame to the client; 0 to disable" default:"5s" env:"JOYRELAY_WRITE_TIMEOUT"`
}
