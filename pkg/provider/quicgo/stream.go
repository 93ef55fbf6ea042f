package quicgo

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	quic "github.com/quic-go/quic-go"

	"pcr1024/quicmq/pkg/provider"
)

// receiveBufSize is the read chunk size of the receive loop.
const receiveBufSize = 4096

// sendQueueDepth bounds the submissions waiting for the send goroutine.
// Submissions beyond it block in Send until the queue drains.
const sendQueueDepth = 64

type sendReq struct {
	buf     []byte
	sendCtx any
}

// stream is one bidirectional quic-go stream. A dedicated send goroutine
// preserves submission order; the receive goroutine delivers scatter
// events and retains unconsumed suffixes until receiving is re-enabled.
type stream struct {
	qs      *quic.Stream
	handler provider.StreamHandler

	mu         sync.Mutex
	started    bool
	sendClosed bool

	sendCh chan sendReq
	gate   chan struct{}
	done   chan struct{}

	finishOnce sync.Once
	appClosed  atomic.Bool
	paused     atomic.Bool

	// pending holds the retained unconsumed suffix between deliveries
	pending []byte
}

func newStream(qs *quic.Stream, h provider.StreamHandler) *stream {
	return &stream{
		qs:      qs,
		handler: h,
		sendCh:  make(chan sendReq, sendQueueDepth),
		gate:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the send and receive goroutines.
func (s *stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("stream already started")
	}
	s.started = true

	go s.sendLoop()
	go s.recvLoop()
	return nil
}

// Send enqueues one buffer for ordered transmission. sendCtx comes back
// through OnSendComplete once the write finished or the stream died.
func (s *stream) Send(buf []byte, sendCtx any) error {
	s.mu.Lock()
	if !s.started || s.sendClosed {
		s.mu.Unlock()
		return fmt.Errorf("stream not accepting sends")
	}
	s.mu.Unlock()

	select {
	case s.sendCh <- sendReq{buf: buf, sendCtx: sendCtx}:
		return nil
	case <-s.done:
		return fmt.Errorf("stream shut down")
	}
}

// sendLoop writes submissions in order and reports their completion.
func (s *stream) sendLoop() {
	for {
		select {
		case <-s.done:
			s.drainSends()
			return
		case req := <-s.sendCh:
			_, err := s.qs.Write(req.buf)
			s.handler.OnSendComplete(req.sendCtx, err != nil)
			if err != nil {
				s.finish()
				s.drainSends()
				return
			}
		}
	}
}

// drainSends completes queued submissions as canceled.
func (s *stream) drainSends() {
	for {
		select {
		case req := <-s.sendCh:
			s.handler.OnSendComplete(req.sendCtx, true)
		default:
			return
		}
	}
}

// recvLoop reads from the stream and delivers receive events in byte
// order. io.EOF means the peer shut down its send direction; the local
// send direction stays open.
func (s *stream) recvLoop() {
	buf := make([]byte, receiveBufSize)

	for {
		n, err := s.qs.Read(buf)
		if n > 0 {
			if !s.deliver(buf[:n]) {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.handler.OnPeerSendShutdown()
				return
			}
			s.finish()
			return
		}
	}
}

// deliver hands one chunk (prefixed by any retained suffix) to the
// handler and applies the partial-consume contract. It returns false when
// the stream is shutting down.
func (s *stream) deliver(chunk []byte) bool {
	var buffers [][]byte
	if len(s.pending) > 0 {
		buffers = [][]byte{s.pending, chunk}
	} else {
		buffers = [][]byte{chunk}
	}

	var total uint64
	for _, b := range buffers {
		total += uint64(len(b))
	}

	ev := &provider.ReceiveEvent{
		Buffers: buffers,
		Total:   total,
	}
	s.handler.OnReceive(ev)

	consumed := ev.Consumed
	if consumed > total {
		consumed = total
	}

	if consumed == total && !s.paused.Load() {
		s.pending = nil
		return true
	}

	// retain the unconsumed suffix and wait until receiving is re-enabled
	s.pending = suffix(buffers, consumed)

	select {
	case <-s.gate:
		return true
	case <-s.done:
		return false
	}
}

// suffix copies the bytes of buffers past the first skip bytes.
func suffix(buffers [][]byte, skip uint64) []byte {
	var out []byte
	var seen uint64

	for _, b := range buffers {
		if seen+uint64(len(b)) <= skip {
			seen += uint64(len(b))
			continue
		}

		from := 0
		if seen < skip {
			from = int(skip - seen)
		}
		out = append(out, b[from:]...)
		seen += uint64(len(b))
	}

	return out
}

// SetReceiveEnabled resumes or pauses receive delivery. Enabling hands the
// receive loop one token, which is held until the loop next waits; enabling
// again while a token is pending is a no-op.
func (s *stream) SetReceiveEnabled(enabled bool) error {
	if !enabled {
		s.paused.Store(true)
		return nil
	}

	s.paused.Store(false)
	select {
	case s.gate <- struct{}{}:
	default:
	}
	return nil
}

// Close releases the stream handle.
func (s *stream) Close() {
	s.appClosed.Store(true)

	s.qs.CancelRead(0)
	_ = s.qs.Close()

	s.finish()
}

// finish ends both loops, cancels queued sends, and delivers the final
// shutdown event exactly once.
func (s *stream) finish() {
	first := false
	s.finishOnce.Do(func() {
		first = true

		s.mu.Lock()
		s.sendClosed = true
		s.mu.Unlock()

		close(s.done)
		s.drainSends()
	})

	// the handler may close the stream, which re-enters finish; invoking it
	// outside the Once keeps that re-entry from blocking
	if first {
		s.handler.OnShutdownComplete(s.appClosed.Load())
	}
}
