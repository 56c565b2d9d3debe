//go:build tinygo

package main

import "machine"

const (
	// Timing
	REPORT_INTERVAL_MS   = 1000 // One status line per second
	SENSOR_INTERVAL_MS   = 2000 // DHT22 needs at least 2s between reads
	HEATER_WATCHDOG_MS   = 5000 // Heater off when the host stops commanding it
	LOOP_SLEEP_MICROS    = 500
	COMMAND_BUFFER_BYTES = 8 // Longest command is "S180"

	// Servo pulse range for 0..180 degrees at 50Hz
	SERVO_MIN_US = 765
	SERVO_MAX_US = 2405

	// Heater relay/SSR pin
	PIN_HEATER = machine.D7

	// DHT22 data pin
	PIN_DHT = machine.D1

	// Servo signal pin, must be a channel of SERVO_PWM
	PIN_SERVO = machine.D2

	// Serial configuration
	// Format "unix_micros,temp,humd,status,heater,servo\n" is ~40 bytes at 1 line/s.
	UART_BAUD_RATE = 115200
)

// PWM peripheral driving PIN_SERVO.
var SERVO_PWM = machine.TCC0
