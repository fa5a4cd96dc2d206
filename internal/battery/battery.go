// Package battery reports the charge of the venue sign's UPS board.
package battery

import (
	"context"
	"errors"
	"math/rand"
	"runtime"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	appLog "invitecal/internal/log"
)

// PiSugar3 register map.
const (
	regVoltageHigh = 0x22
	regVoltageLow  = 0x23
	regPercent     = 0x2A
)

// Status is the battery state shown on the sign and the API.
type Status struct {
	// Percent is the battery level in 0-100%.
	Percent int `json:"percent"`
	// VoltageMv is the battery voltage in millivolts, 0 if unknown.
	VoltageMv int `json:"voltage_mv"`
	// Mock is true when no hardware answered and the value is simulated.
	Mock bool `json:"mock"`
}

// Reader abstracts how battery information is obtained, so development
// machines without I2C still serve the endpoint.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

type mockReader struct {
	rnd *rand.Rand
}

// NewMockReader returns a Reader with a pseudo-random level between 20%
// and 100% and unknown voltage.
func NewMockReader(seed int64) Reader {
	return &mockReader{rnd: rand.New(rand.NewSource(seed))}
}

func (m *mockReader) Read(_ context.Context) (Status, error) {
	return Status{Percent: 20 + m.rnd.Intn(81), Mock: true}, nil
}

// i2cReader talks to a PiSugar3 style controller over I2C.
type i2cReader struct {
	busName string
	addr    uint16
}

// NewI2CReader keeps the bus configuration; the bus is opened per Read.
// busName "" selects the first available bus (/dev/i2c-1 on a Pi).
func NewI2CReader(busName string, addr uint16) Reader {
	return &i2cReader{busName: busName, addr: addr}
}

func (r *i2cReader) Read(_ context.Context) (Status, error) {
	if runtime.GOOS != "linux" {
		return Status{}, errors.New("battery: i2c reader unavailable on this platform")
	}
	if _, err := host.Init(); err != nil {
		return Status{}, err
	}

	bus, err := i2creg.Open(r.busName)
	if err != nil {
		return Status{}, err
	}
	defer bus.Close()

	dev := &i2c.Dev{Bus: bus, Addr: r.addr}
	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, err
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return Status{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return Status{}, err
	}
	pct, err := readReg(regPercent)
	if err != nil {
		return Status{}, err
	}
	return decode(high, low, pct), nil
}

func decode(high, low, pct byte) Status {
	if pct > 100 {
		pct = 100
	}
	return Status{
		Percent:   int(pct),
		VoltageMv: int(uint16(high)<<8 | uint16(low)),
	}
}

// Open probes the I2C controller once and falls back to the mock reader
// when it does not answer (no hardware, other OS, permissions).
func Open(ctx context.Context, busName string, addr uint16) Reader {
	if runtime.GOOS != "linux" {
		return NewMockReader(time.Now().UnixNano())
	}
	r := NewI2CReader(busName, addr)
	if _, err := r.Read(ctx); err != nil {
		appLog.Info("battery controller not found; using mock readings", "bus", busName, "addr", addr, "err", err.Error())
		return NewMockReader(time.Now().UnixNano())
	}
	return r
}
