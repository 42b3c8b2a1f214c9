package camera

import (
	"fmt"
	"strings"
)

// Daemon command verbs.
const (
	CmdConnect          = "connect"
	CmdDisconnect       = "disconnect"
	CmdStopServer       = "stopserver"
	CmdEcho             = "echo"
	CmdUsleep           = "usleep"
	CmdUpdateStatus     = "update_status"
	CmdFocus            = "focus"
	CmdShutter          = "shutter"
	CmdDeleteBuffer     = "delete_buffer"
	CmdGetBuffer        = "get_buffer"
	CmdGetPreviewBuffer = "get_preview_buffer"
	CmdSetShutterSpeed  = "set_shutter_speed"
	CmdSetISO           = "set_iso"
)

// bufferCommand formats a command addressing a single buffer slot.
func bufferCommand(verb string, index int) string {
	return fmt.Sprintf("%s %d", verb, index)
}

// ParseCommands splits a ';' separated command list, dropping empty entries.
func ParseCommands(list string) []string {
	var commands []string
	for _, c := range strings.Split(list, ";") {
		c = strings.TrimSpace(c)
		if c != "" {
			commands = append(commands, c)
		}
	}
	return commands
}
