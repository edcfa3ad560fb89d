package notify

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/simlab/simnet/internal/codec"
)

// writeTimeout bounds how long a frame write may stall before the
// subscriber connection is dropped.
const writeTimeout = 5 * time.Second

// frame is the wire form of one pushed event: the topic plus the packed
// payload map.
type frame struct {
	Topic   string `msgpack:"topic"`
	Payload []byte `msgpack:"payload"`
}

// Listener serves the push-only notification socket: every accepted
// connection receives all events published on the broker from the moment it
// connects. There is no subscription protocol and nothing is read from
// clients.
type Listener struct {
	broker *Broker
	logger *slog.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewListener creates a listener attached to the given broker.
func NewListener(b *Broker, logger *slog.Logger) *Listener {
	return &Listener{broker: b, logger: logger}
}

// Start binds addr and begins accepting subscriber connections.
func (l *Listener) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind notification socket: %w", err)
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	l.logger.Info("notification listener started", "addr", ln.Addr().String())

	l.wg.Add(1)
	go l.acceptLoop(ln)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// Close stops accepting connections and waits for per-connection goroutines
// to drain.
func (l *Listener) Close() error {
	l.mu.Lock()
	ln := l.ln
	l.ln = nil
	l.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	l.wg.Wait()
	return err
}

func (l *Listener) acceptLoop(ln net.Listener) {
	defer l.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed or fatal accept error; either way stop.
			return
		}
		l.wg.Add(1)
		go l.serveConn(conn)
	}
}

// serveConn streams every broker event to one subscriber until a write
// fails or the listener shuts down.
func (l *Listener) serveConn(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	events, cancel := l.broker.Subscribe("")
	defer cancel()

	// Detect the listener closing: unsubscribe happens via deferred cancel,
	// but a blocked receive must also wake up when the socket dies. Closing
	// the connection from Close() makes the next write fail, so only the
	// receive needs a nudge; poll with a modest timeout.
	for {
		select {
		case ev := <-events:
			if err := l.writeFrame(conn, ev); err != nil {
				l.logger.Debug("dropping notification subscriber", "remote", conn.RemoteAddr().String(), "error", err)
				return
			}
		case <-time.After(time.Second):
			if l.closed() {
				return
			}
		}
	}
}

func (l *Listener) closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ln == nil
}

// writeFrame sends one length-prefixed msgpack frame.
func (l *Listener) writeFrame(conn net.Conn, ev Event) error {
	payload, err := codec.EncodeEvent(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode frame payload: %w", err)
	}
	body, err := msgpack.Marshal(frame{Topic: ev.Topic, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if _, err := conn.Write(header[:]); err != nil {
		return err
	}
	_, err = conn.Write(body)
	return err
}

// ReadFrame reads one pushed event from a subscriber connection. It is the
// client-side counterpart of the listener's framing.
func ReadFrame(r io.Reader) (topic string, payload map[string]any, err error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", nil, err
	}
	body := make([]byte, binary.BigEndian.Uint32(header[:]))
	if _, err := io.ReadFull(r, body); err != nil {
		return "", nil, err
	}

	var f frame
	if err := msgpack.Unmarshal(body, &f); err != nil {
		return "", nil, fmt.Errorf("decode frame: %w", err)
	}
	payload, err = codec.DecodeEvent(f.Payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode frame payload: %w", err)
	}
	return f.Topic, payload, nil
}
