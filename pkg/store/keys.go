package store

// Keys provisioned in the read-only tier.
const (
	KeyRotateInterval      = "rotate_interval"             // seconds between turns
	KeyRotateMaxDegrees    = "rotate_max_degrees"          // int
	KeyRotateMinDegrees    = "rotate_min_degrees"          // int
	KeyRotateAutostopHours = "rotate_autostop_after_hours" // 18.5 days = 444h
)

// Keys provisioned in the read-write tier.
const (
	KeyTempTarget        = "temp_target"
	KeyKp                = "kp"
	KeyKi                = "ki"
	KeyKd                = "kd"
	KeyEpochStart        = "epoch_start"
	KeyRotateOnOff       = "rotate_onoff"
	KeyRotateLastDegrees = "rotate_last_degrees"
)
