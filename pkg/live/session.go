package live

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weft-dev/weft/pkg/weft"
)

// Session is one WebSocket connection. Each subscribed signal name is one
// effect under the session's owner: the effect reads the signal, so the
// engine re-runs it on every change and the session enqueues an Update
// frame from inside the write's synchronous propagation. Closing the
// session disposes the owner, which tears every subscription down.
type Session struct {
	id      uint64
	gateway *Gateway
	conn    *websocket.Conn
	logger  *slog.Logger
	config  Config

	owner   *weft.Owner
	send    chan *Frame
	done    chan struct{}
	closed  atomic.Bool
	sendSeq atomic.Uint64

	mu   sync.Mutex
	subs map[string]*weft.Effect
}

func newSession(id uint64, g *Gateway, conn *websocket.Conn) *Session {
	return &Session{
		id:      id,
		gateway: g,
		conn:    conn,
		logger:  g.logger.With("session_id", id),
		config:  g.config,
		owner:   weft.NewOwner(nil),
		send:    make(chan *Frame, g.config.SendBuffer),
		done:    make(chan struct{}),
		subs:    make(map[string]*weft.Effect),
	}
}

// ID returns the session's identifier.
func (s *Session) ID() uint64 {
	return s.id
}

// Subscriptions returns how many signals the session is subscribed to.
func (s *Session) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Start starts the session's read and write loops.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Close tears the session down: subscriptions, cleanups, the connection.
// Safe to call from any goroutine, any number of times.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}

	close(s.done)
	s.owner.Dispose()

	s.mu.Lock()
	dropped := len(s.subs)
	s.subs = nil
	s.mu.Unlock()
	if dropped > 0 {
		s.gateway.metrics.subscriptions.Sub(float64(dropped))
	}

	s.conn.Close()
	s.gateway.removeSession(s)
}

// readLoop reads frames until the connection closes. Effects created here
// and runs triggered by other goroutines both touch the tracker, so the
// loop releases this goroutine's tracking state on exit.
func (s *Session) readLoop() {
	defer s.Close()
	defer weft.ReleaseTracking()

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		frame, err := DecodeFrame(msg)
		if err != nil {
			s.sendError(CodeBadFrame, err.Error())
			continue
		}
		s.gateway.metrics.framesIn.WithLabelValues(frame.Type.String()).Inc()

		switch frame.Type {
		case FrameHello:
			s.handleHello(frame)

		case FrameSub:
			s.handleSub(frame)

		case FrameUnsub:
			s.handleUnsub(frame)

		case FrameSet:
			s.handleSet(frame)

		case FramePing:
			s.handlePing(frame)

		case FramePong:
			// Heartbeat answered, nothing to do.

		default:
			s.logger.Warn("unknown frame type", "type", frame.Type)
			s.sendError(CodeBadFrame, "unknown frame type")
		}
	}
}

// writeLoop is the only goroutine that writes to the connection.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.send:
			if err := s.writeFrame(frame); err != nil {
				s.logger.Error("write error", "error", err)
				s.Close()
				return
			}

		case <-ticker.C:
			ping, err := EncodeFrame(FramePing, PingPayload{Timestamp: time.Now().UnixMilli()})
			if err != nil {
				continue
			}
			if err := s.writeFrame(ping); err != nil {
				s.Close()
				return
			}

		case <-s.done:
			return
		}
	}
}

func (s *Session) writeFrame(f *Frame) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, f.Encode()); err != nil {
		return err
	}
	s.gateway.metrics.framesOut.WithLabelValues(f.Type.String()).Inc()
	return nil
}

func (s *Session) handleHello(frame *Frame) {
	var hello HelloPayload
	if err := DecodePayload(frame, &hello); err != nil {
		s.sendError(CodeBadPayload, err.Error())
		return
	}

	s.enqueueFrame(FrameHelloAck, HelloAckPayload{
		Protocol:  ProtocolVersion,
		SessionID: s.id,
		Signals:   s.gateway.reg.Names(),
	}, 0)
	s.logger.Debug("hello", "client", hello.Client, "protocol", hello.Protocol)
}

func (s *Session) handleSub(frame *Frame) {
	var sub SubPayload
	if err := DecodePayload(frame, &sub); err != nil {
		s.sendError(CodeBadPayload, err.Error())
		return
	}

	for _, name := range sub.Names {
		s.subscribe(name)
	}
}

// subscribe binds one signal name to an Update-pushing effect. The first
// run happens synchronously right here and carries FlagInitial; later runs
// happen inside whichever write changes the signal.
func (s *Session) subscribe(name string) {
	s.mu.Lock()
	_, dup := s.subs[name]
	s.mu.Unlock()
	if dup {
		return
	}

	sig, ok := s.gateway.reg.Lookup(name)
	if !ok {
		s.sendError(CodeUnknownSignal, name)
		return
	}

	var initial atomic.Bool
	initial.Store(true)

	eff := weft.CreateEffect(func() weft.Cleanup {
		data, err := sig.GetJSON()
		if err != nil {
			s.logger.Error("encode update", "name", name, "error", err)
			return nil
		}
		var flags FrameFlags
		if initial.CompareAndSwap(true, false) {
			flags = FlagInitial
		}
		s.enqueueFrame(FrameUpdate, UpdatePayload{
			Name:  name,
			Value: data,
			Seq:   s.sendSeq.Add(1),
		}, flags)
		return nil
	}, weft.OwnedBy(s.owner), weft.EffectName("live."+name))

	if !s.track(name, eff) {
		eff.Dispose()
		return
	}
	s.gateway.metrics.subscriptions.Inc()
}

// track records the subscription unless the session closed or another Sub
// for the same name won the race.
func (s *Session) track(name string, eff *weft.Effect) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		return false
	}
	if _, dup := s.subs[name]; dup {
		return false
	}
	s.subs[name] = eff
	return true
}

func (s *Session) handleUnsub(frame *Frame) {
	var unsub UnsubPayload
	if err := DecodePayload(frame, &unsub); err != nil {
		s.sendError(CodeBadPayload, err.Error())
		return
	}

	for _, name := range unsub.Names {
		s.mu.Lock()
		eff := s.subs[name]
		delete(s.subs, name)
		s.mu.Unlock()

		if eff != nil {
			eff.Dispose()
			s.gateway.metrics.subscriptions.Dec()
		}
	}
}

func (s *Session) handleSet(frame *Frame) {
	var set SetPayload
	if err := DecodePayload(frame, &set); err != nil {
		s.sendError(CodeBadPayload, err.Error())
		return
	}

	sig, ok := s.gateway.reg.Lookup(set.Name)
	if !ok {
		s.sendError(CodeUnknownSignal, set.Name)
		return
	}

	if err := s.gateway.applyWrite(context.Background(), "ws", set.Name, sig, set.Value); err != nil {
		s.sendError(CodeTypeMismatch, err.Error())
	}
}

func (s *Session) handlePing(frame *Frame) {
	var ping PingPayload
	if err := DecodePayload(frame, &ping); err != nil {
		s.sendError(CodeBadPayload, err.Error())
		return
	}
	s.enqueueFrame(FramePong, PongPayload{Timestamp: ping.Timestamp}, 0)
}

func (s *Session) sendError(code, message string) {
	s.enqueueFrame(FrameError, ErrorPayload{Code: code, Message: message}, 0)
}

func (s *Session) enqueueFrame(ft FrameType, v any, flags FrameFlags) {
	frame, err := EncodeFrame(ft, v)
	if err != nil {
		s.logger.Error("encode frame", "type", ft, "error", err)
		return
	}
	frame.Flags = flags
	s.enqueue(frame)
}

// enqueue hands a frame to the write loop. A full buffer means the client
// stopped draining; the session closes rather than block a propagation
// pass.
func (s *Session) enqueue(frame *Frame) {
	if s.closed.Load() {
		return
	}
	select {
	case s.send <- frame:
	default:
		s.gateway.metrics.slowConsumers.Inc()
		s.logger.Warn("send buffer full, closing session")
		go s.Close()
	}
}
