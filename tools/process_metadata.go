package tools

import "time"

// ProcessMetadata captures runtime details for a language server process.
type ProcessMetadata struct {
	PID     int
	Command string
	Args    []string
	Started time.Time
}

// ProcessMetadataProvider exposes metadata for the hosting process.
type ProcessMetadataProvider interface {
	ProcessMetadata() ProcessMetadata
}

// ProcessMetadata reports the server process. PID is zero for clients
// that were not started as a process.
func (c *processLSPClient) ProcessMetadata() ProcessMetadata {
	meta := ProcessMetadata{
		Command: c.cfg.Command,
		Args:    append([]string(nil), c.cfg.Args...),
		Started: c.started,
	}
	if c.cmd != nil && c.cmd.Process != nil {
		meta.PID = c.cmd.Process.Pid
	}
	return meta
}
