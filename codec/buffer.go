package codec

import (
	"fmt"
	"strings"

	"github.com/xaionaro-go/avtransformer/pool"
)

type BufferFlags uint32

const (
	BufferFlagKeyFrame = BufferFlags(1 << iota)
	BufferFlagCodecConfig
	BufferFlagEndOfStream
)

func (f BufferFlags) Has(flag BufferFlags) bool {
	return f&flag == flag
}

func (f BufferFlags) String() string {
	var s []string
	if f.Has(BufferFlagKeyFrame) {
		s = append(s, "key")
	}
	if f.Has(BufferFlagCodecConfig) {
		s = append(s, "config")
	}
	if f.Has(BufferFlagEndOfStream) {
		s = append(s, "eos")
	}
	return strings.Join(s, "|")
}

// Buffer is a chunk of media data (compressed sample or raw audio) with its
// presentation time.
type Buffer struct {
	Data               []byte
	PresentationTimeUs int64
	Flags              BufferFlags
}

func (b *Buffer) IsKeyFrame() bool {
	return b.Flags.Has(BufferFlagKeyFrame)
}

func (b *Buffer) IsEndOfStream() bool {
	return b.Flags.Has(BufferFlagEndOfStream)
}

func (b *Buffer) Reset() {
	b.Data = b.Data[:0]
	b.PresentationTimeUs = 0
	b.Flags = 0
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%dB, pts:%dus, flags:%s)", len(b.Data), b.PresentationTimeUs, b.Flags)
}

var bufferPool = pool.NewPool(
	func() *Buffer { return &Buffer{} },
	(*Buffer).Reset,
)

// GetBuffer returns an empty buffer from the pool, with at least capacity
// bytes of capacity.
func GetBuffer(capacity int) *Buffer {
	b := bufferPool.Get()
	if cap(b.Data) < capacity {
		b.Data = make([]byte, 0, capacity)
	}
	return b
}

// PutBuffer returns buffers to the pool; they must not be used afterwards.
func PutBuffer(buffers ...*Buffer) {
	bufferPool.Put(buffers...)
}
