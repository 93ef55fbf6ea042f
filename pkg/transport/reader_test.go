package transport

import (
	"bytes"
	"io"
	"testing"
)

func TestReader_SingleRead_Scatter(t *testing.T) {
	t.Parallel()

	// one 7-byte packet scattered over three buffers
	r := NewReader([][]byte{
		{0x30, 0x05},
		{'H', 'E', 'L'},
		{'L', 'O'},
	})

	dst := make([]byte, 7)
	n, err := r.Read(dst)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if n != 7 {
		t.Fatalf("Read() = %d, want 7", n)
	}

	want := []byte{0x30, 0x05, 'H', 'E', 'L', 'L', 'O'}
	if !bytes.Equal(dst, want) {
		t.Errorf("Read() = %v, want %v", dst, want)
	}
	if r.Consumed() != 7 {
		t.Errorf("Consumed() = %d, want 7", r.Consumed())
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", r.Remaining())
	}
}

func TestReader_SequentialReads_PreserveOrder(t *testing.T) {
	t.Parallel()

	payload := []byte("the quick brown fox jumps over the lazy dog")
	r := NewReader([][]byte{
		payload[:3], payload[3:4], payload[4:20], payload[20:20], payload[20:],
	})

	var got []byte
	sizes := []int{1, 2, 5, 11, 3, 100}
	for _, size := range sizes {
		dst := make([]byte, size)
		n, err := r.Read(dst)
		if err != nil && err != io.EOF {
			t.Fatalf("Read() error = %v", err)
		}
		got = append(got, dst[:n]...)
	}

	if !bytes.Equal(got, payload) {
		t.Errorf("reassembled %q, want %q", got, payload)
	}
	if r.Consumed() != uint64(len(payload)) {
		t.Errorf("Consumed() = %d, want %d", r.Consumed(), len(payload))
	}
}

func TestReader_PartialConsume_Positioning(t *testing.T) {
	t.Parallel()

	r := NewReader([][]byte{
		{1, 2, 3}, {4, 5}, {6, 7, 8, 9},
	})

	// consume k=4 bytes, crossing the first buffer boundary
	dst := make([]byte, 4)
	if n, _ := r.Read(dst); n != 4 {
		t.Fatalf("Read() = %d, want 4", n)
	}
	if r.Consumed() != 4 {
		t.Fatalf("Consumed() = %d, want 4", r.Consumed())
	}

	// the next read must start at the 5th delivered byte
	next := make([]byte, 1)
	if n, _ := r.Read(next); n != 1 {
		t.Fatalf("Read() = %d, want 1", n)
	}
	if next[0] != 5 {
		t.Errorf("next byte = %d, want 5", next[0])
	}
}

func TestReader_NeverOverConsumes(t *testing.T) {
	t.Parallel()

	r := NewReader([][]byte{{1, 2, 3}})

	dst := make([]byte, 10)
	n, err := r.Read(dst)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Read() = %d, want 3", n)
	}
	if r.Consumed() > r.Total() {
		t.Errorf("Consumed() = %d exceeds Total() = %d", r.Consumed(), r.Total())
	}

	// exhausted reader reports EOF and consumes nothing further
	n, err = r.Read(dst)
	if n != 0 || err != io.EOF {
		t.Errorf("Read() after exhaustion = (%d, %v), want (0, EOF)", n, err)
	}
	if r.Consumed() != 3 {
		t.Errorf("Consumed() = %d, want 3", r.Consumed())
	}
}

func TestReader_ZeroLengthRead(t *testing.T) {
	t.Parallel()

	r := NewReader([][]byte{{1, 2}})

	n, err := r.Read(nil)
	if n != 0 || err != nil {
		t.Errorf("Read(nil) = (%d, %v), want (0, nil)", n, err)
	}
	if r.Consumed() != 0 {
		t.Errorf("Consumed() = %d, want 0", r.Consumed())
	}
}

func TestReader_EmptyVector(t *testing.T) {
	t.Parallel()

	r := NewReader(nil)

	dst := make([]byte, 1)
	if n, err := r.Read(dst); n != 0 || err != io.EOF {
		t.Errorf("Read() = (%d, %v), want (0, EOF)", n, err)
	}
}

func TestReader_Peek_DoesNotConsume(t *testing.T) {
	t.Parallel()

	r := NewReader([][]byte{{0x30}, {0x05, 'H'}, {'E', 'L', 'L', 'O'}})

	hdr := make([]byte, 2)
	if n := r.Peek(hdr); n != 2 {
		t.Fatalf("Peek() = %d, want 2", n)
	}
	if hdr[0] != 0x30 || hdr[1] != 0x05 {
		t.Errorf("Peek() = %v, want [0x30 0x05]", hdr)
	}
	if r.Consumed() != 0 {
		t.Fatalf("Peek consumed %d bytes", r.Consumed())
	}

	// a subsequent read starts at the first byte
	dst := make([]byte, 7)
	n, _ := r.Read(dst)
	if n != 7 || dst[0] != 0x30 {
		t.Errorf("Read() after Peek = (%d, %v)", n, dst[:n])
	}
}

func TestReader_Peek_ShortVector(t *testing.T) {
	t.Parallel()

	r := NewReader([][]byte{{1, 2, 3}})

	dst := make([]byte, 5)
	if n := r.Peek(dst); n != 3 {
		t.Errorf("Peek() = %d, want 3", n)
	}
}
