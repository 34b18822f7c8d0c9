// Package device owns one serial endpoint end to end: the link
// itself, frame reassembly, CoAP request/response correlation, and
// the Device Info record a successful query populates.
package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/tsnbridge/veloctl/internal/coap"
	"github.com/tsnbridge/veloctl/internal/metrics"
	"github.com/tsnbridge/veloctl/internal/mup1"
	"github.com/tsnbridge/veloctl/internal/reassemble"
	"github.com/tsnbridge/veloctl/internal/reqtracker"
)

// State is one of the four connection lifecycle states.
type State int

const (
	Closed State = iota
	Opening
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned by Request when the connection is
	// not in the Open state.
	ErrNotConnected = errors.New("device: not connected")
	// ErrAlreadyOpen means Connect was called on a connection that
	// is already Opening or Open.
	ErrAlreadyOpen = errors.New("device: already open")
)

const (
	pingAfterOpenDelay      = 500 * time.Millisecond
	infoQueryAfterPingDelay = 200 * time.Millisecond
	defaultInfoQueryTimeout = 10 * time.Second
)

// Connection owns a single serial endpoint: go.bug.st/serial handle,
// MUP1 codec, Stream Reassembler, CoAP codec, and request tracker.
// Writes are serialized through a single actor goroutine so only one
// writer ever touches the port.
type Connection struct {
	path     string
	baudRate int
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	port        serial.Port
	writeCh     chan writeRequest
	stopReading chan struct{}
	wg          sync.WaitGroup

	tracker *reqtracker.Tracker
	info    *Info
	infoMu  sync.RWMutex

	metrics *metrics.AppMetrics
}

type writeRequest struct {
	frame []byte
	done  chan error
}

const defaultBaudRate = 115200

// New constructs an unopened Connection for path. baudRate of zero
// uses the device's 115200 8N1 default.
func New(path string, baudRate int, logger *zap.Logger) *Connection {
	if baudRate == 0 {
		baudRate = defaultBaudRate
	}
	return &Connection{
		path:     path,
		baudRate: baudRate,
		logger:   logger,
		state:    Closed,
		tracker:  reqtracker.NewTracker(),
		info:     &Info{Path: path, Label: path, BaudRate: baudRate},
	}
}

// SetMetrics attaches the process-wide metrics to this connection; nil
// is safe and disables instrumentation.
func (c *Connection) SetMetrics(m *metrics.AppMetrics) { c.metrics = m }

func (c *Connection) Path() string { return c.path }

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the serial port at the connection's baud rate (115200
// unless New was given another) with 8N1 and no flow control,
// starts the reader actor, and primes the link with a Ping frame
// after a short settling delay. On failure the connection returns to
// Closed.
func (c *Connection) Connect() error {
	c.mu.Lock()
	if c.state != Closed {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = Opening
	c.mu.Unlock()

	mode := &serial.Mode{
		BaudRate: c.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(c.path, mode)
	if err != nil {
		c.mu.Lock()
		c.state = Closed
		c.mu.Unlock()
		return fmt.Errorf("device: open %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.port = port
	c.state = Open
	c.writeCh = make(chan writeRequest, 16)
	c.stopReading = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()

	time.AfterFunc(pingAfterOpenDelay, func() {
		if c.State() != Open {
			return
		}
		if err := c.sendPing(); err != nil && c.logger != nil {
			c.logger.Warn("ping after open failed", zap.String("path", c.path), zap.Error(err))
		}
	})

	time.AfterFunc(pingAfterOpenDelay+infoQueryAfterPingDelay, func() {
		if c.State() != Open {
			return
		}
		if err := c.QueryDeviceInfo(defaultInfoQueryTimeout); err != nil && c.logger != nil {
			c.logger.Warn("device info query after open failed", zap.String("path", c.path), zap.Error(err))
		}
	})

	c.setConnected(true)
	return nil
}

// Disconnect transitions Open→Closing→Closed, closes the port, and
// drains every pending request waiter via the tracker.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.state != Open {
		c.mu.Unlock()
		return nil
	}
	c.state = Closing
	port := c.port
	close(c.stopReading)
	c.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
	}

	c.wg.Wait()

	c.mu.Lock()
	c.state = Closed
	c.port = nil
	c.mu.Unlock()

	c.tracker.OnDisconnect()
	c.setConnected(false)
	return err
}

func (c *Connection) handleIOFailure(cause error) {
	c.mu.Lock()
	if c.state != Open {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	port := c.port
	c.port = nil
	c.mu.Unlock()

	if port != nil {
		port.Close()
	}
	c.tracker.OnDisconnect()
	c.setConnected(false)
	if c.logger != nil {
		c.logger.Warn("connection dropped", zap.String("path", c.path), zap.Error(cause))
	}
}

func (c *Connection) setConnected(v bool) {
	c.infoMu.Lock()
	c.info.Connected = v
	c.info.LastSeen = time.Now()
	c.infoMu.Unlock()
}

// readLoop feeds serial reads into the reassembler until the port
// closes or Disconnect is called.
func (c *Connection) readLoop() {
	defer c.wg.Done()
	reasm := reassemble.New(&sink{conn: c})
	buf := make([]byte, 4096)
	for {
		select {
		case <-c.stopReading:
			return
		default:
		}
		n, err := c.port.Read(buf)
		if err != nil {
			c.handleIOFailure(err)
			return
		}
		if n > 0 {
			reasm.Feed(buf[:n])
		}
	}
}

// writeLoop is the single writer touching the serial handle, per the
// one-actor-per-connection rule.
func (c *Connection) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopReading:
			return
		case req := <-c.writeCh:
			_, err := c.port.Write(req.frame)
			req.done <- err
		}
	}
}

func (c *Connection) write(frame []byte) error {
	c.mu.Lock()
	if c.state != Open {
		c.mu.Unlock()
		return ErrNotConnected
	}
	ch := c.writeCh
	c.mu.Unlock()

	done := make(chan error, 1)
	ch <- writeRequest{frame: frame, done: done}
	return <-done
}

func (c *Connection) sendPing() error {
	frame, err := mup1.Encode(mup1.TypePing, nil)
	if err != nil {
		return err
	}
	return c.write(frame)
}

// Request issues a CoAP request over this connection and blocks until
// the response is matched, the request times out, or the connection
// drops. Fails fast with ErrNotConnected when not Open.
func (c *Connection) Request(method byte, uri string, payload []byte, timeout time.Duration) ([]byte, error) {
	if c.State() != Open {
		return nil, ErrNotConnected
	}

	build := func(mid uint16) ([]byte, error) {
		coapBytes, err := coap.Build(coap.BuildRequest{Method: method, URI: uri, Payload: payload, MessageID: mid})
		if err != nil {
			return nil, err
		}
		return mup1.Encode(mup1.TypeCoAP, coapBytes)
	}

	if c.metrics != nil {
		c.metrics.RequestsSent.Inc()
	}

	waiter, err := c.tracker.Send(method, uri, timeout, build, c.write)
	if err != nil {
		return nil, err
	}
	result := <-waiter

	if c.metrics != nil && result.Err != nil {
		var timeoutErr *reqtracker.RequestTimeoutError
		if errors.As(result.Err, &timeoutErr) {
			c.metrics.RequestTimeouts.Inc()
		} else {
			c.metrics.RequestErrors.Inc()
		}
	}
	return result.Payload, result.Err
}

// sink adapts the reassembler's dispatch callbacks to this connection.
type sink struct {
	conn *Connection
}

func (s *sink) countDecoded(frameType string) {
	if s.conn.metrics != nil {
		s.conn.metrics.FramesDecoded.WithLabelValues(frameType).Inc()
	}
}

func (s *sink) OnCoAP(payload []byte) {
	s.countDecoded("coap")
	msg, err := coap.Parse(payload)
	if err != nil {
		if s.conn.logger != nil {
			s.conn.logger.Warn("coap parse failed", zap.String("path", s.conn.path), zap.Error(err))
		}
		return
	}
	s.conn.tracker.OnResponse(msg)
}

func (s *sink) OnAnnounce(text string) {
	s.countDecoded("announce")
	if s.conn.logger != nil {
		s.conn.logger.Info("announce", zap.String("path", s.conn.path), zap.String("text", text))
	}
}

func (s *sink) OnTrace(text string) {
	s.countDecoded("trace")
	if s.conn.logger != nil {
		s.conn.logger.Debug("trace", zap.String("path", s.conn.path), zap.String("text", text))
	}
}

func (s *sink) OnPong() {
	s.countDecoded("pong")
	if s.conn.logger != nil {
		s.conn.logger.Debug("pong", zap.String("path", s.conn.path))
	}
}

func (s *sink) OnSystem(text string) {
	s.countDecoded("system")
	if s.conn.logger != nil {
		s.conn.logger.Info("system", zap.String("path", s.conn.path), zap.String("text", text))
	}
}

func (s *sink) OnFrameDropped(reason string) {
	if s.conn.metrics != nil {
		s.conn.metrics.FramesDropped.Inc()
	}
	if s.conn.logger != nil {
		s.conn.logger.Warn("frame dropped", zap.String("path", s.conn.path), zap.String("reason", reason))
	}
}
