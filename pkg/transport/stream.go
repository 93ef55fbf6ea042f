package transport

import (
	"fmt"
	"math"
	"sync/atomic"

	"pcr1024/quicmq/pkg/log"
	"pcr1024/quicmq/pkg/provider"
)

// PacketHandler is the parser entry point of the MQTT layer. It is invoked
// synchronously on the goroutine delivering a receive event and must not
// retain the Reader past its return.
type PacketHandler interface {
	HandleIncoming(r *Reader) error
}

// Stream wraps the single bidirectional control stream of a connection.
// Incoming bytes are handed to the PacketHandler; outgoing packets are
// copied into send descriptors and submitted to the provider.
type Stream struct {
	handle  provider.Stream
	handler PacketHandler
	logger  *log.Logger

	// in-flight send descriptors, for leak accounting
	outstanding atomic.Int64
}

func newStream(handler PacketHandler, logger *log.Logger) *Stream {
	return &Stream{
		handler: handler,
		logger:  logger,
	}
}

// Send copies p into a send descriptor and submits it. It returns the
// number of bytes accepted, which is len(p) on success. The descriptor is
// released when the provider completes the send.
func (s *Stream) Send(p []byte) (int, error) {
	if s == nil || s.handle == nil {
		return 0, fmt.Errorf("no active stream: %w", ErrInvalidArgument)
	}
	if p == nil {
		return 0, fmt.Errorf("nil payload: %w", ErrInvalidArgument)
	}
	if uint64(len(p)) > math.MaxUint32 {
		return 0, fmt.Errorf("payload of %d bytes exceeds limit: %w", len(p), ErrInvalidArgument)
	}

	desc := newSendDescriptor(p)

	s.outstanding.Add(1)
	if err := s.handle.Send(desc.Bytes(), desc); err != nil {
		s.outstanding.Add(-1)
		if relErr := desc.release(); relErr != nil {
			s.logger.Errorf("releasing descriptor after failed submit: %s", relErr)
		}
		s.logger.Debugf("Stream send of %d bytes rejected: %v", len(p), err)
		return 0, fmt.Errorf("submitting send: %w", err)
	}

	return len(p), nil
}

// Outstanding returns the number of send descriptors awaiting completion.
func (s *Stream) Outstanding() int64 {
	return s.outstanding.Load()
}

// streamEvents adapts provider stream callbacks onto the Stream. Kept off
// the Stream itself so the callback surface is not part of the public API.
type streamEvents struct {
	s *Stream
}

// OnSendComplete releases the descriptor carried as the submission context.
func (e streamEvents) OnSendComplete(sendCtx any, canceled bool) {
	desc, ok := sendCtx.(*SendDescriptor)
	if !ok {
		e.s.logger.Errorf("send completion carried unexpected context %T", sendCtx)
		return
	}

	if canceled {
		e.s.logger.Debugf("Send of %d bytes canceled", desc.Len())
	}

	if err := desc.release(); err != nil {
		e.s.logger.Errorf("send completion: %s", err)
		return
	}
	e.s.outstanding.Add(-1)
}

// OnReceive exposes the event's buffers to the packet parser and accounts
// for partial consumption. When the parser leaves bytes unconsumed, the
// provider retains the suffix and receive delivery is re-enabled so it
// comes back together with the next data.
func (e streamEvents) OnReceive(ev *provider.ReceiveEvent) {
	r := NewReader(ev.Buffers)

	err := e.s.handler.HandleIncoming(r)
	ev.Consumed = r.Consumed()

	if err != nil {
		e.s.logger.Errorf("packet parser: %s", err)
	}

	if ev.Consumed < ev.Total {
		e.s.logger.Debugf("Partial consume: %d of %d bytes", ev.Consumed, ev.Total)
		if err := e.s.handle.SetReceiveEnabled(true); err != nil {
			e.s.logger.Errorf("re-enabling receive: %s", err)
		}
	}
}

// OnPeerSendShutdown logs the peer closing its send direction. The local
// send direction remains open.
func (e streamEvents) OnPeerSendShutdown() {
	e.s.logger.Infof("Peer shut down its send direction")
}

// OnShutdownComplete closes the stream handle unless the shim already
// closed it.
func (e streamEvents) OnShutdownComplete(appClosing bool) {
	e.s.logger.Debugf("Stream shutdown complete")
	if !appClosing && e.s.handle != nil {
		e.s.handle.Close()
	}
}
