package daemon

// StartOptions configures the daemon. Zero values fall back to config.yaml.
type StartOptions struct {
	Home      string
	Port      int    // overrides daemon.port
	PprofAddr string // overrides daemon.pprof; e.g. "127.0.0.1:6060"
	LogLevel  string // overrides daemon.log_level
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
