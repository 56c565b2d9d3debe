//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/dht"
	"tinygo.org/x/drivers/servo"
)

// Sensor status codes understood by the host.
const (
	statusOK      = 0
	statusTimeout = 1
	statusCRC     = 2
)

var (
	serial = machine.Serial

	sensor dht.Device
	arm    servo.Servo

	// Last sensor reading, tenths of °C / %RH
	temperature int16
	humidity    uint16
	status      = statusTimeout

	heaterOn      bool
	lastHeaterCmd time.Time
	servoDegrees  = -1 // -1 while released

	// Timing
	lastReport time.Time
	lastSensor time.Time

	// Serial buffer for reading lines
	serialBuffer [COMMAND_BUFFER_BYTES]byte
	serialPos    int
	overflow     bool
)

func main() {
	PIN_HEATER.Configure(machine.PinConfig{Mode: machine.PinOutput})
	setHeater(false)

	serial.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	sensor = dht.New(PIN_DHT, dht.DHT22)

	var err error
	arm, err = servo.New(SERVO_PWM, PIN_SERVO)
	if err != nil {
		println("# servo:", err.Error())
	}

	now := time.Now()
	lastReport = now
	lastSensor = now.Add(-SENSOR_INTERVAL_MS * time.Millisecond)
	lastHeaterCmd = now

	for {
		now = time.Now()

		processSerial(now)

		if heaterOn && now.Sub(lastHeaterCmd) >= HEATER_WATCHDOG_MS*time.Millisecond {
			setHeater(false)
			println("# watchdog: heater off")
		}

		if now.Sub(lastSensor) >= SENSOR_INTERVAL_MS*time.Millisecond {
			readSensor()
			lastSensor = now
		}

		if now.Sub(lastReport) >= REPORT_INTERVAL_MS*time.Millisecond {
			report(now)
			lastReport = now
		}

		time.Sleep(LOOP_SLEEP_MICROS * time.Microsecond)
	}
}

func readSensor() {
	if err := sensor.ReadMeasurements(); err != nil {
		if err == dht.ChecksumError {
			status = statusCRC
		} else {
			status = statusTimeout
		}
		return
	}

	t, h, err := sensor.Measurements()
	if err != nil {
		status = statusTimeout
		return
	}
	temperature, humidity, status = t, h, statusOK
}

// report writes "unix_micros,temp,humd,status,heater,servo\n".
// Example: "1700000000000000,375,612,0,1,90\n"
func report(now time.Time) {
	print(now.UnixNano() / 1000)
	print(",")
	print(temperature)
	print(",")
	print(humidity)
	print(",")
	print(status)
	print(",")
	if heaterOn {
		print("1")
	} else {
		print("0")
	}
	print(",")
	print(servoDegrees)
	print("\n")
}

func processSerial(now time.Time) {
	for serial.Buffered() > 0 {
		data, err := serial.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos > 0 && !overflow {
				execute(serialBuffer[:serialPos], now)
			}
			serialPos = 0
			overflow = false
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			overflow = true
		}
	}
}

// execute applies one command: H0/H1 heater, S<deg> servo, R release.
func execute(cmd []byte, now time.Time) {
	switch cmd[0] {
	case 'H':
		if len(cmd) != 2 || (cmd[1] != '0' && cmd[1] != '1') {
			println("# bad heater command")
			return
		}
		lastHeaterCmd = now
		setHeater(cmd[1] == '1')
	case 'S':
		degrees, ok := parseDegrees(cmd[1:])
		if !ok {
			println("# bad servo command")
			return
		}
		setServo(degrees)
	case 'R':
		releaseServo()
	default:
		println("# unknown command")
	}
}

func parseDegrees(digits []byte) (int, bool) {
	if len(digits) == 0 || len(digits) > 3 {
		return 0, false
	}
	n := 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n > 180 {
		return 0, false
	}
	return n, true
}

func setHeater(on bool) {
	heaterOn = on
	if on {
		PIN_HEATER.High()
	} else {
		PIN_HEATER.Low()
	}
}

func setServo(degrees int) {
	us := SERVO_MIN_US + degrees*(SERVO_MAX_US-SERVO_MIN_US)/180
	arm.SetMicroseconds(int16(us))
	servoDegrees = degrees
}

// releaseServo stops the pulse train so the servo goes limp.
func releaseServo() {
	arm.SetMicroseconds(0)
	servoDegrees = -1
}
