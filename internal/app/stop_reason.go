package app

// StopReason labels why a shutdown was initiated. It feeds logs only; no
// control flow branches on it.
type StopReason string

const (
	StopUnknown      StopReason = "unknown"
	StopSIGINT       StopReason = "sigint"
	StopSIGTERM      StopReason = "sigterm"
	StopFatalError   StopReason = "fatal_error"
	StopAppStop      StopReason = "app_stop"
	StopConfigReload StopReason = "config_reload"
)

func (r StopReason) String() string {
	if r == "" {
		return string(StopUnknown)
	}
	return string(r)
}
