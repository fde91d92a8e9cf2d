package feed

import (
	"bufio"
	"context"
	"io"

	"go.bug.st/serial"

	"github.com/banshee-data/crossing.report/internal/monitoring"
	"github.com/banshee-data/crossing.report/internal/track"
)

// Porter is the minimal surface a live receiver port must provide.
// Keeping it an interface lets tests substitute an in-memory port.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// SerialOptions configures the receiver link.
type SerialOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize applies receiver defaults for any unset values.
func (o SerialOptions) Normalize() SerialOptions {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 38400
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.Parity == "" {
		opts.Parity = "none"
	}
	return opts
}

func (o SerialOptions) mode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: o.DataBits,
	}
	switch o.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}
	switch o.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode
}

// OpenSerial opens the receiver port at path.
func OpenSerial(path string, opts SerialOptions) (Porter, error) {
	opts = opts.Normalize()
	return serial.Open(path, opts.mode())
}

// SerialFeed streams parsed position reports from a receiver port.
type SerialFeed struct {
	port  Porter
	Stats ParseStats
}

func NewSerialFeed(port Porter) *SerialFeed {
	return &SerialFeed{port: port}
}

// Run reads lines from the port until the context is cancelled or the
// port reaches EOF, sending each parsed report to out. Malformed lines
// are logged and counted but never stop the feed.
func (f *SerialFeed) Run(ctx context.Context, out chan<- track.PositionReport) error {
	scan := bufio.NewScanner(f.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan lives in its own goroutine so the outer
	// loop can honour context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				return scan.Err()
			}
			f.Stats.Lines++
			report, parsed, err := ParseLine(line)
			if err != nil {
				f.Stats.Malformed++
				monitoring.Logf("[feed] skipping malformed line %q: %v", line, err)
				continue
			}
			if !parsed {
				continue
			}
			f.Stats.Reports++
			select {
			case out <- report:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close closes the underlying port.
func (f *SerialFeed) Close() error {
	return f.port.Close()
}
