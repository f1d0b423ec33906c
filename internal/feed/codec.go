package feed

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype used for feed messages.
const CodecName = "cbor"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core deterministic encoding keeps identical messages byte-identical.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("feed: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("feed: CBOR decoder initialization failed: " + err.Error())
	}
	encoding.RegisterCodec(cborCodec{})
}

// cborCodec implements encoding.Codec for the feed messages.
type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("feed: marshal %T: %w", v, err)
	}
	return b, nil
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("feed: unmarshal %T: %w", v, err)
	}
	return nil
}

func (cborCodec) Name() string { return CodecName }
