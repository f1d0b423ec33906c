package feed

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/encoding/gzip"
)

// Compressor names accepted by DialOptions.Compression.
const (
	CompressionNone = ""
	CompressionZstd = "zstd"
	CompressionGzip = gzip.Name
)

func init() {
	encoding.RegisterCompressor(&zstdCompressor{})
}

// zstdCompressor adapts klauspost zstd to grpc's encoding.Compressor.
// Decoders are pooled; each one holds its own window buffers.
type zstdCompressor struct {
	decoders sync.Pool
}

func (c *zstdCompressor) Name() string { return CompressionZstd }

func (c *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
}

func (c *zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	if d, ok := c.decoders.Get().(*zstd.Decoder); ok {
		if err := d.Reset(r); err != nil {
			d.Close()
			return nil, err
		}
		return &pooledDecoder{d: d, pool: &c.decoders}, nil
	}
	d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &pooledDecoder{d: d, pool: &c.decoders}, nil
}

// pooledDecoder returns its decoder to the pool once the message is drained.
type pooledDecoder struct {
	d    *zstd.Decoder
	pool *sync.Pool
}

func (p *pooledDecoder) Read(b []byte) (int, error) {
	if p.d == nil {
		return 0, io.EOF
	}
	n, err := p.d.Read(b)
	if err == io.EOF {
		// Detach the source before pooling so the reader can be collected.
		_ = p.d.Reset(nil)
		p.pool.Put(p.d)
		p.d = nil
	}
	return n, err
}

// ValidCompression reports whether name is a supported compressor.
func ValidCompression(name string) bool {
	switch name {
	case CompressionNone, CompressionZstd, CompressionGzip:
		return true
	}
	return false
}
