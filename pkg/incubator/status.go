package incubator

import "time"

// Status is a snapshot of the incubator published after every tick and
// command.
type Status struct {
	Time        time.Time `json:"time"`
	Date        string    `json:"date"`
	Clock       string    `json:"clock"`
	Step        uint64    `json:"step"`
	Temperature float32   `json:"temperature"`
	Humidity    float32   `json:"humidity"`
	SensorFault bool      `json:"sensor_fault"`
	Target      float32   `json:"target"`
	Kp          float32   `json:"kp"`
	Ki          float32   `json:"ki"`
	Kd          float32   `json:"kd"`
	Duty        float32   `json:"duty"`
	Level       int       `json:"level"`
	Heater      bool      `json:"heater"`
	Degrees     int       `json:"degrees"`
	Rotating    bool      `json:"rotating"`
	AutoRotate  bool      `json:"auto_rotate"`
	NextRotate  int64     `json:"next_rotate_in"` // Seconds, 0 when not scheduled
	EpochStart  int64     `json:"epoch_start"`
	Connected   bool      `json:"connected"`
}
