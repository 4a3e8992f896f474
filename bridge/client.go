// Package bridge is the real-hardware register.Bus: a Greaseweazle-class
// USB-serial flux adapter wearing the same chip-register face simdisk
// wears in tests. Grounded on _examples/sergev-fdx's greaseweazle client
// (command/ACK table, serial framing) generalized from a one-shot "dump a
// whole disk to a file" tool into the register-level Bus trackio/motor/
// floppy already know how to drive, plus the bit-level flux<->MFM-word
// translation (bitstream.go, flux.go) a register-level DMAStart/DMAStop
// needs that a simulated Bus never does.
package bridge

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// VendorID/ProductID identify a Greaseweazle-class adapter on the USB bus.
const (
	VendorID  = 0x1209
	ProductID = 0x4d69
)

// Command codes, unchanged from the adapter's own protocol.
const (
	cmdGetInfo       = 0
	cmdSeek          = 2
	cmdHead          = 3
	cmdMotor         = 6
	cmdReadFlux      = 7
	cmdWriteFlux     = 8
	cmdGetFluxStatus = 9
	cmdSelect        = 12
	cmdDeselect      = 13
	cmdSetBusType    = 14
	cmdGetPin        = 20
)

// ACK codes.
const (
	ackOkay        = 0
	ackNoTrk0      = 3
	ackWrProt      = 6
	ackBadCylinder = 11
)

const (
	getinfoFirmware = 0
)

const (
	busIBMPC = 1
)

// ErrBadPin is returned by getPin for a pin the adapter doesn't support.
var ErrBadPin = fmt.Errorf("bridge: pin not supported")

// FirmwareInfo is the subset of CMD_GET_INFO/GETINFO_FIRMWARE this driver
// actually reads: the sample clock rate DMA transfers are timed against.
type FirmwareInfo struct {
	SampleFreqHz uint32
}

// Client wraps one serial connection to a Greaseweazle-class adapter.
type Client struct {
	port     serial.Port
	firmware FirmwareInfo
}

// DiscoverPorts lists connected serial ports matching VendorID/ProductID.
func DiscoverPorts() ([]*enumerator.PortDetails, error) {
	all, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("bridge: enumerate ports: %w", err)
	}
	var out []*enumerator.PortDetails
	want := fmt.Sprintf("%04X", VendorID)
	wantPID := fmt.Sprintf("%04X", ProductID)
	for _, p := range all {
		if p.IsUSB && p.VID == want && p.PID == wantPID {
			out = append(out, p)
		}
	}
	return out, nil
}

// Open connects to the adapter at portName, fetches its firmware info, and
// configures it for the IBM-PC bus (the only bus this driver targets).
func Open(portName string) (*Client, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: 9600})
	if err != nil {
		return nil, fmt.Errorf("bridge: open %s: %w", portName, err)
	}
	c := &Client{port: port}

	fw, err := c.fetchFirmwareInfo()
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("bridge: fetch firmware info: %w", err)
	}
	c.firmware = fw

	if err := port.SetMode(&serial.Mode{BaudRate: 10000}); err != nil {
		port.Close()
		return nil, fmt.Errorf("bridge: reset baud rate: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := port.SetMode(&serial.Mode{BaudRate: 9600}); err != nil {
		port.Close()
		return nil, fmt.Errorf("bridge: restore baud rate: %w", err)
	}

	if err := c.doCommand([]byte{cmdSetBusType, 3, busIBMPC}); err != nil {
		port.Close()
		return nil, fmt.Errorf("bridge: set bus type: %w", err)
	}
	return c, nil
}

// Close releases the underlying serial port.
func (c *Client) Close() error {
	return c.port.Close()
}

// SampleFreqHz is the adapter's flux sample clock, needed to convert
// between tick counts on the wire and nanoseconds.
func (c *Client) SampleFreqHz() uint32 {
	return c.firmware.SampleFreqHz
}

func ackError(code byte) error {
	switch code {
	case ackOkay:
		return nil
	case ackNoTrk0:
		return fmt.Errorf("bridge: no track 0")
	case ackWrProt:
		return fmt.Errorf("bridge: write protected")
	case ackBadCylinder:
		return fmt.Errorf("bridge: invalid cylinder")
	default:
		return fmt.Errorf("bridge: adapter error code %d", code)
	}
}

func (c *Client) doCommand(cmd []byte) error {
	if _, err := c.port.Write(cmd); err != nil {
		return fmt.Errorf("bridge: write command: %w", err)
	}
	ack := make([]byte, 2)
	if _, err := io.ReadFull(c.port, ack); err != nil {
		return fmt.Errorf("bridge: read ACK: %w", err)
	}
	if ack[0] != cmd[0] {
		return fmt.Errorf("bridge: command echo mismatch (0x%02x != 0x%02x, status 0x%02x)", ack[0], cmd[0], ack[1])
	}
	return ackError(ack[1])
}

func (c *Client) fetchFirmwareInfo() (FirmwareInfo, error) {
	var info FirmwareInfo
	if err := c.doCommand([]byte{cmdGetInfo, 3, getinfoFirmware}); err != nil {
		return info, err
	}
	response := make([]byte, 32)
	if _, err := io.ReadFull(c.port, response); err != nil {
		return info, fmt.Errorf("bridge: read GET_INFO response: %w", err)
	}
	info.SampleFreqHz = binary.LittleEndian.Uint32(response[4:8])
	return info, nil
}

// selectDrive selects unit (0 or 1) as the current drive.
func (c *Client) selectDrive(unit byte) error {
	return c.doCommand([]byte{cmdSelect, 3, unit})
}

// deselectDrive deselects the current drive.
func (c *Client) deselectDrive() error {
	return c.doCommand([]byte{cmdDeselect, 2})
}

// setMotor turns the currently-selected drive's motor on or off.
func (c *Client) setMotor(unit byte, on bool) error {
	var v byte
	if on {
		v = 1
	}
	return c.doCommand([]byte{cmdMotor, 4, unit, v})
}

// setHead selects the head (side) used by the next flux transfer.
func (c *Client) setHead(head byte) error {
	return c.doCommand([]byte{cmdHead, 3, head})
}

// seek moves the head to an absolute cylinder — the adapter has no notion
// of relative step pulses, unlike the CIA interface callers program
// through; bridge.Bus tracks the believed cylinder itself and always
// issues an absolute seek (see bus.go's stepSelected).
func (c *Client) seek(cylinder byte) error {
	return c.doCommand([]byte{cmdSeek, 3, cylinder})
}

// readFlux captures raw flux transitions for one revolution.
func (c *Client) readFlux() ([]byte, error) {
	cmd := make([]byte, 8)
	cmd[0] = cmdReadFlux
	cmd[1] = 8
	binary.LittleEndian.PutUint32(cmd[2:6], 0)
	binary.LittleEndian.PutUint16(cmd[6:8], 1)
	if err := c.doCommand(cmd); err != nil {
		return nil, fmt.Errorf("bridge: READ_FLUX: %w", err)
	}

	var data []byte
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(c.port, buf); err != nil {
			return nil, fmt.Errorf("bridge: read flux stream: %w", err)
		}
		if buf[0] == 0 {
			break
		}
		data = append(data, buf[0])
	}
	return data, nil
}

// writeFlux sends a pre-encoded flux interval stream (already terminated
// with a trailing 0 byte by encodeFluxIntervals) to be written starting at
// the next index pulse.
func (c *Client) writeFlux(intervals []byte) error {
	cmd := make([]byte, 2, 2+len(intervals))
	cmd[0] = cmdWriteFlux
	cmd[1] = byte(2 + len(intervals))
	cmd = append(cmd, intervals...)
	if err := c.doCommand(cmd); err != nil {
		return fmt.Errorf("bridge: WRITE_FLUX: %w", err)
	}
	return c.getFluxStatus()
}

func (c *Client) getFluxStatus() error {
	return c.doCommand([]byte{cmdGetFluxStatus, 2})
}

// getPin reads one Shugart/IBM-PC bus sense pin's level.
func (c *Client) getPin(pin byte) (bool, error) {
	cmd := []byte{cmdGetPin, 3, pin}
	if _, err := c.port.Write(cmd); err != nil {
		return false, fmt.Errorf("bridge: write GET_PIN: %w", err)
	}
	ack := make([]byte, 2)
	if _, err := io.ReadFull(c.port, ack); err != nil {
		return false, fmt.Errorf("bridge: read GET_PIN ACK: %w", err)
	}
	if ack[1] != ackOkay {
		if ack[1] == 10 { // ACK_BAD_PIN
			return false, ErrBadPin
		}
		return false, ackError(ack[1])
	}
	level := make([]byte, 1)
	if _, err := io.ReadFull(c.port, level); err != nil {
		return false, fmt.Errorf("bridge: read pin level: %w", err)
	}
	return level[0] == 1, nil
}
