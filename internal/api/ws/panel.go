package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/terminaltab/internal/shared/id"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/protocol"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	outboundBuffer = 256
)

// ErrPanelClosed is returned when posting to a closed panel.
var ErrPanelClosed = errors.New("panel closed")

// Panel is a UI surface backed by a WebSocket connection. A normal close
// from the client ends the inbound stream; any other disconnect first
// delivers a detach message so the session can be restored later.
type Panel struct {
	id      id.SurfaceID
	conn    *websocket.Conn
	logger  *zap.Logger
	metrics *monitoring.Metrics

	inbound  chan protocol.Message
	outbound chan protocol.Message
	done     chan struct{}
	closed   chan struct{}

	closeOnce sync.Once
}

// NewPanel wraps conn. Call Start to begin pumping messages.
func NewPanel(conn *websocket.Conn, logger *zap.Logger, metrics *monitoring.Metrics) *Panel {
	if logger == nil {
		logger = zap.NewNop()
	}
	surfaceID := id.NewSurfaceID()
	return &Panel{
		id:       surfaceID,
		conn:     conn,
		logger:   logger.With(zap.String("surface_id", surfaceID.String())),
		metrics:  metrics,
		inbound:  make(chan protocol.Message, 64),
		outbound: make(chan protocol.Message, outboundBuffer),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

// ID returns the surface id.
func (p *Panel) ID() id.SurfaceID {
	return p.id
}

// Start launches the read and write pumps.
func (p *Panel) Start() {
	p.metrics.IncWSConnections()
	go p.readPump()
	go p.writePump()
}

// Closed is closed once the connection has been torn down.
func (p *Panel) Closed() <-chan struct{} {
	return p.closed
}

func (p *Panel) Inbound() <-chan protocol.Message {
	return p.inbound
}

func (p *Panel) Post(msg protocol.Message) error {
	select {
	case <-p.done:
		return ErrPanelClosed
	default:
	}
	select {
	case p.outbound <- msg:
		return nil
	case <-p.done:
		return ErrPanelClosed
	}
}

func (p *Panel) SetTitle(title string) {
	p.postPayload(protocol.TypePanelTitle, protocol.TitlePayload{Title: title})
}

func (p *Panel) ShowWarning(message string) {
	p.postPayload(protocol.TypeWarning, protocol.WarningPayload{Message: message})
}

// Close flushes queued messages and closes the connection.
func (p *Panel) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	return nil
}

func (p *Panel) postPayload(msgType string, payload any) {
	msg, err := protocol.New(msgType, payload)
	if err != nil {
		p.logger.Warn("Failed to encode surface message", zap.String("type", msgType), zap.Error(err))
		return
	}
	p.Post(msg)
}

func (p *Panel) readPump() {
	defer func() {
		close(p.inbound)
		p.metrics.DecWSConnections()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg protocol.Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			switch {
			case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
				p.logger.Warn("Dropping malformed surface frame", zap.Error(err))
				continue
			case websocket.IsCloseError(err, websocket.CloseNormalClosure), p.isClosing():
				p.logger.Debug("Surface closed")
			default:
				p.logger.Info("Surface disconnected, detaching", zap.Error(err))
				p.deliver(protocol.Message{Type: protocol.TypeDetach})
			}
			return
		}
		p.metrics.RecordWSMessage("in", msg.Type)
		if !p.deliver(msg) {
			return
		}
	}
}

func (p *Panel) deliver(msg protocol.Message) bool {
	select {
	case p.inbound <- msg:
		return true
	case <-p.done:
		return false
	}
}

func (p *Panel) isClosing() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Panel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
		close(p.closed)
	}()

	for {
		select {
		case msg := <-p.outbound:
			if err := p.write(msg); err != nil {
				p.logger.Debug("Surface write failed", zap.Error(err))
				p.Close()
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.Close()
				return
			}
		case <-p.done:
			p.flush()
			p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever is already queued.
func (p *Panel) flush() {
	for {
		select {
		case msg := <-p.outbound:
			if err := p.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (p *Panel) write(msg protocol.Message) error {
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteJSON(msg); err != nil {
		return err
	}
	p.metrics.RecordWSMessage("out", msg.Type)
	return nil
}
