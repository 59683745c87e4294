package server

import (
	"fmt"

	"connectrpc.com/connect"
	"github.com/fxamacker/cbor/v2"
)

// CodecName is the Connect codec name; requests carry
// Content-Type: application/cbor.
const CodecName = "cbor"

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("server: cbor enc mode: %v", err))
	}
	cborDec, err = cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 64,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("server: cbor dec mode: %v", err))
	}
}

// cborCodec marshals the plain Go message structs with canonical CBOR.
type cborCodec struct{}

var _ connect.Codec = cborCodec{}

func (cborCodec) Name() string { return CodecName }

func (cborCodec) Marshal(msg any) ([]byte, error) {
	return cborEnc.Marshal(msg)
}

func (cborCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return cborDec.Unmarshal(data, msg)
}

// WithCBOR is the handler and client option that installs the codec.
func WithCBOR() connect.Option {
	return connect.WithCodec(cborCodec{})
}
