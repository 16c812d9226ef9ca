// Package config defines the joyrelay command line.
package config

import "github.com/Alia5/joyrelay/internal/cmd"

type Log struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"JOYRELAY_LOG_LEVEL"`
	File    string `help:"Also write logs to this file" env:"JOYRELAY_LOG_FILE"`
	RawFile string `help:"Write hex dumps of relayed frames to this file" env:"JOYRELAY_LOG_RAW_FILE"`
}

type CLI struct {
	Log        Log    `embed:"" prefix:"log."`
	ConfigFile string `name:"config" help:"Configuration file (.json, .yaml or .toml)" env:"JOYRELAY_CONFIG" type:"path"`

	Serve     cmd.Serve         `cmd:"" help:"Relay a local joystick to one client at a time"`
	Teleop    cmd.Teleop        `cmd:"" help:"Dispatch button presses to the demo handlers"`
	Identify  cmd.Identify      `cmd:"" help:"Print the index of every pressed button"`
	Proxy     cmd.Proxy         `cmd:"" help:"Forward an event server and log its frames"`
	Devices   cmd.Devices       `cmd:"" help:"List device backends"`
	Config    cmd.ConfigCommand `cmd:"" help:"Configuration helpers"`
	Install   cmd.Install       `cmd:"" help:"Install the event server as a system service"`
	Uninstall cmd.Uninstall     `cmd:"" help:"Remove the system service"`
}
