package epd

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"invitecal/internal/convert"
	appLog "invitecal/internal/log"
)

// BCM pin numbers of the Waveshare e-Paper HAT. Chip select is the
// hardware CE0 line handled by spidev.
const (
	bcmRST  = 17
	bcmDC   = 25
	bcmBUSY = 24
)

// Controller commands (UC8179, 7.5" B V2 class panels).
const (
	cmdPanelSetting   = 0x00
	cmdPowerSetting   = 0x01
	cmdPowerOff       = 0x02
	cmdPowerOn        = 0x04
	cmdDeepSleep      = 0x07
	cmdDataBlack      = 0x10
	cmdDisplayRefresh = 0x12
	cmdDataRed        = 0x13
	cmdDualSPI        = 0x15
	cmdVCOMInterval   = 0x50
	cmdTCON           = 0x60
	cmdResolution     = 0x61
	cmdGateStart      = 0x65
	cmdGetStatus      = 0x71
)

// spidev rejects transfers above 4096 bytes by default.
const maxChunk = 4096

// busyTimeout bounds one refresh; a full tri-color refresh takes ~15s.
var busyTimeout = 40 * time.Second

// The narrow pin/bus surface the panel needs, so the command sequence can
// be tested without hardware.
type (
	txConn interface {
		Tx(w, r []byte) error
	}
	outPin interface {
		Out(l gpio.Level) error
	}
	inPin interface {
		Read() gpio.Level
	}
)

// SPIPanel drives a single-controller tri-color panel over periph.io.
type SPIPanel struct {
	geom convert.Geometry

	conn  txConn
	port  spi.PortCloser
	rst   outPin
	dc    outPin
	busy  inPin
	sleep func(time.Duration)
}

// OpenSPI initializes periph.io, opens the default SPI port and the HAT
// pins, resets the panel and runs its init sequence.
func OpenSPI(g convert.Geometry) (*SPIPanel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: periph host init failed: %w", err)
	}

	port, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("epd: failed to open SPI port: %w", err)
	}
	conn, err := port.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: failed to connect SPI: %w", err)
	}

	pin := func(num int) (gpio.PinIO, error) {
		name := fmt.Sprintf("GPIO%d", num)
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("epd: gpio %s not found", name)
		}
		return p, nil
	}
	rst, err := pin(bcmRST)
	if err == nil {
		err = rst.Out(gpio.High)
	}
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	dc, err := pin(bcmDC)
	if err == nil {
		err = dc.Out(gpio.Low)
	}
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	busy, err := pin(bcmBUSY)
	if err == nil {
		err = busy.In(gpio.PullUp, gpio.NoEdge)
	}
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	p := &SPIPanel{
		geom:  g,
		conn:  conn,
		port:  port,
		rst:   rst,
		dc:    dc,
		busy:  busy,
		sleep: time.Sleep,
	}
	if err := p.init(); err != nil {
		_ = port.Close()
		return nil, err
	}
	appLog.Info("epd panel initialized", "width", g.Width, "height", g.Height)
	return p, nil
}

func (p *SPIPanel) reset() {
	_ = p.rst.Out(gpio.High)
	p.sleep(200 * time.Millisecond)
	_ = p.rst.Out(gpio.Low)
	p.sleep(4 * time.Millisecond)
	_ = p.rst.Out(gpio.High)
	p.sleep(200 * time.Millisecond)
}

func (p *SPIPanel) command(reg byte, data ...byte) error {
	if err := p.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := p.conn.Tx([]byte{reg}, nil); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return p.data(data)
}

func (p *SPIPanel) data(buf []byte) error {
	if err := p.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(buf) > 0 {
		n := min(len(buf), maxChunk)
		if err := p.conn.Tx(buf[:n], nil); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// waitIdle polls BUSY (low while busy) after asking for the status.
func (p *SPIPanel) waitIdle() error {
	deadline := time.Now().Add(busyTimeout)
	for {
		if err := p.command(cmdGetStatus); err != nil {
			return err
		}
		if p.busy.Read() == gpio.High {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("epd: timed out waiting for panel")
		}
		p.sleep(20 * time.Millisecond)
	}
}

func (p *SPIPanel) init() error {
	p.reset()

	w, h := p.geom.Width, p.geom.Height
	steps := []struct {
		reg  byte
		data []byte
	}{
		{cmdPowerSetting, []byte{0x07, 0x07, 0x3F, 0x3F}},
		{cmdPowerOn, nil},
	}
	for _, s := range steps {
		if err := p.command(s.reg, s.data...); err != nil {
			return err
		}
	}
	p.sleep(100 * time.Millisecond)
	if err := p.waitIdle(); err != nil {
		return err
	}

	steps = []struct {
		reg  byte
		data []byte
	}{
		{cmdPanelSetting, []byte{0x0F}},
		{cmdResolution, []byte{byte(w >> 8), byte(w), byte(h >> 8), byte(h)}},
		{cmdDualSPI, []byte{0x00}},
		{cmdVCOMInterval, []byte{0x11, 0x07}},
		{cmdTCON, []byte{0x22}},
		{cmdGateStart, []byte{0x00, 0x00, 0x00, 0x00}},
	}
	for _, s := range steps {
		if err := p.command(s.reg, s.data...); err != nil {
			return err
		}
	}
	return nil
}

// Display sends both planes and refreshes. The controller's red RAM uses 1
// for ink, so that plane is inverted on the way out.
func (p *SPIPanel) Display(black, red []byte) error {
	if err := checkPlanes(black, red, p.geom); err != nil {
		return err
	}

	if err := p.command(cmdDataBlack); err != nil {
		return err
	}
	if err := p.data(black); err != nil {
		return err
	}

	inv := make([]byte, len(red))
	for i, b := range red {
		inv[i] = ^b
	}
	if err := p.command(cmdDataRed); err != nil {
		return err
	}
	if err := p.data(inv); err != nil {
		return err
	}

	if err := p.command(cmdDisplayRefresh); err != nil {
		return err
	}
	p.sleep(100 * time.Millisecond)
	return p.waitIdle()
}

// Sleep powers the panel off and puts it into deep sleep; the image stays.
func (p *SPIPanel) Sleep() error {
	if err := p.command(cmdPowerOff); err != nil {
		return err
	}
	if err := p.waitIdle(); err != nil {
		return err
	}
	return p.command(cmdDeepSleep, 0xA5)
}

func (p *SPIPanel) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}
