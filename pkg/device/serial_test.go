package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    RawSample
		wantErr bool
	}{
		{
			name: "valid line - heater on, servo attached",
			line: "1700000000000000,375,612,0,1,90",
			want: RawSample{
				Timestamp:   time.UnixMicro(1700000000000000),
				Temperature: 37.5,
				Humidity:    61.2,
				Status:      StatusOK,
				Heater:      true,
				Servo:       90,
			},
		},
		{
			name: "valid line - heater off, servo released",
			line: "1700000000000000,385,550,0,0,-1",
			want: RawSample{
				Timestamp:   time.UnixMicro(1700000000000000),
				Temperature: 38.5,
				Humidity:    55,
				Status:      StatusOK,
				Heater:      false,
				Servo:       NoServo,
			},
		},
		{
			name: "valid line - sensor timeout",
			line: "1700000000000000,0,0,1,0,45",
			want: RawSample{
				Timestamp: time.UnixMicro(1700000000000000),
				Status:    StatusTimeout,
				Servo:     45,
			},
		},
		{
			name: "valid line - below zero",
			line: "1,-55,1000,0,0,0",
			want: RawSample{
				Timestamp:   time.UnixMicro(1),
				Temperature: -5.5,
				Humidity:    100,
				Status:      StatusOK,
			},
		},
		{
			name:    "invalid - wrong number of fields",
			line:    "1700000000000000,375,612,0,1",
			wantErr: true,
		},
		{
			name:    "invalid - too many fields",
			line:    "1700000000000000,375,612,0,1,90,extra",
			wantErr: true,
		},
		{
			name:    "invalid - non-numeric timestamp",
			line:    "abc,375,612,0,1,90",
			wantErr: true,
		},
		{
			name:    "invalid - non-numeric temperature",
			line:    "1700000000000000,abc,612,0,1,90",
			wantErr: true,
		},
		{
			name:    "invalid - humidity out of range",
			line:    "1700000000000000,375,1001,0,1,90",
			wantErr: true,
		},
		{
			name:    "invalid - heater state",
			line:    "1700000000000000,375,612,0,2,90",
			wantErr: true,
		},
		{
			name:    "invalid - servo out of range",
			line:    "1700000000000000,375,612,0,1,181",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Timestamp.UnixNano(), got.Timestamp.UnixNano())
			assert.Equal(t, tt.want.Temperature, got.Temperature)
			assert.Equal(t, tt.want.Humidity, got.Humidity)
			assert.Equal(t, tt.want.Status, got.Status)
			assert.Equal(t, tt.want.Heater, got.Heater)
			assert.Equal(t, tt.want.Servo, got.Servo)
		})
	}
}

func TestRawSample_OK(t *testing.T) {
	assert.True(t, RawSample{Status: StatusOK}.OK())
	assert.False(t, RawSample{Status: StatusCRC}.OK())
}

func TestNew(t *testing.T) {
	dev := New("/dev/ttyACM0", 115200, 100)
	assert.NotNil(t, dev)
	assert.Equal(t, "/dev/ttyACM0", dev.port)
	assert.Equal(t, 115200, dev.baudRate)
	assert.Equal(t, 100, dev.bufSize)
	assert.NotNil(t, dev.samples)
	assert.False(t, dev.IsConnected())
}

func TestNew_Defaults(t *testing.T) {
	dev := New("/dev/ttyACM0", 0, 0)
	assert.NotNil(t, dev)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultBufferSize, dev.bufSize)
}

func TestSerial_CommandsRequireConnection(t *testing.T) {
	dev := New("/dev/ttyACM0", 0, 0)

	assert.ErrorIs(t, dev.SetHeater(true), ErrNotConnected)
	assert.ErrorIs(t, dev.SetServo(90), ErrNotConnected)
	assert.ErrorIs(t, dev.ReleaseServo(), ErrNotConnected)
	assert.NoError(t, dev.Close())
}

func TestCommandFormat(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"heater on", FormatHeater(true), "H1\n"},
		{"heater off", FormatHeater(false), "H0\n"},
		{"servo", FormatServo(135), "S135\n"},
		{"servo clamped low", FormatServo(-5), "S0\n"},
		{"servo clamped high", FormatServo(200), "S180\n"},
		{"release", FormatRelease(), "R\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
