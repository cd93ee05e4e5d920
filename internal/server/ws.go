package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// Client frame types.
const (
	frameSubscribe   = "subscribe_duel"
	frameUnsubscribe = "unsubscribe_duel"
	frameError       = "error"
)

const (
	maxFramePayloadBytes   = 4 << 10
	maxDecodeErrorsPerConn = 3
)

var (
	errObserverClosed = errors.New("observer closed")
	errObserverSlow   = errors.New("observer queue full")
)

// wsFrame is the envelope for every websocket message in both directions.
type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type duelRef struct {
	DuelID string `json:"duel_id"`
}

type wsErrorPayload struct {
	Message string `json:"message"`
}

// wsObserver is a websocket client. Outbound frames go through a bounded
// queue drained by a single writer goroutine, so Send never blocks the
// caller and per-connection order is preserved.
type wsObserver struct {
	id      string
	conn    *websocket.Conn
	encoder *json.Encoder
	queue   chan wsFrame
	done    chan struct{}
	once    sync.Once
}

func newWSObserver(conn *websocket.Conn, buffer int) *wsObserver {
	return &wsObserver{
		id:      uuid.NewString(),
		conn:    conn,
		encoder: json.NewEncoder(conn),
		queue:   make(chan wsFrame, buffer),
		done:    make(chan struct{}),
	}
}

// ID implements broadcast.Observer.
func (o *wsObserver) ID() string { return o.id }

// Send implements broadcast.Observer.
func (o *wsObserver) Send(msg *duel.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return o.enqueue(wsFrame{Type: string(msg.Type), Payload: payload})
}

func (o *wsObserver) sendError(message string) {
	payload, _ := json.Marshal(wsErrorPayload{Message: message})
	_ = o.enqueue(wsFrame{Type: frameError, Payload: payload})
}

func (o *wsObserver) enqueue(frame wsFrame) error {
	select {
	case <-o.done:
		return errObserverClosed
	default:
	}

	select {
	case o.queue <- frame:
		return nil
	default:
		o.close()
		return errObserverSlow
	}
}

func (o *wsObserver) writeLoop() {
	for {
		select {
		case <-o.done:
			return
		case frame := <-o.queue:
			if err := o.encoder.Encode(frame); err != nil {
				o.close()
				return
			}
		}
	}
}

// close stops the writer and unblocks the reader by closing the connection.
func (o *wsObserver) close() {
	o.once.Do(func() {
		close(o.done)
		if o.conn != nil {
			_ = o.conn.Close()
		}
	})
}

func (s *Server) wsHandler() http.Handler {
	wsHandler := websocket.Handler(s.handleWSConn)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
}

func (s *Server) handleWSConn(conn *websocket.Conn) {
	obs := newWSObserver(conn, s.cfg.ObserverBuffer)
	defer obs.close()

	go obs.writeLoop()

	s.cfg.Hub.Connect(obs)
	defer s.cfg.Hub.Disconnect(obs.ID())

	decoder := json.NewDecoder(conn)
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || isClosed(obs) {
				return
			}
			decodeErrors++
			obs.sendError("invalid frame")
			if decodeErrors >= maxDecodeErrorsPerConn {
				log.Printf("[Server] Closing observer %s after %d invalid frames", obs.ID(), decodeErrors)
				return
			}
			// The decoder cannot resync after a syntax error.
			decoder = json.NewDecoder(conn)
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			obs.sendError("payload too large")
			continue
		}

		switch frame.Type {
		case frameSubscribe, frameUnsubscribe:
			var ref duelRef
			if err := json.Unmarshal(frame.Payload, &ref); err != nil || strings.TrimSpace(ref.DuelID) == "" {
				obs.sendError("duel_id is required")
				continue
			}
			if frame.Type == frameSubscribe {
				s.cfg.Hub.Subscribe(obs, ref.DuelID)
			} else {
				s.cfg.Hub.Unsubscribe(obs, ref.DuelID)
			}
		default:
			obs.sendError("unsupported frame type: " + frame.Type)
		}
	}
}

func isClosed(o *wsObserver) bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}
