// Package ringctl implements the ring's gRPC admin surface: status
// inspection and forced elections for an operator, served over
// google.golang.org/grpc without generated protobuf types, since no
// protoc toolchain is available in this environment. Requests and
// responses are plain Go structs carried by the json codec registered
// here, and the service description below is the hand-written
// equivalent of what protoc-gen-go-grpc would otherwise emit.
package ringctl

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements google.golang.org/grpc/encoding.Codec. Registering
// it under the name "json" lets both client and server select it via
// grpc.CallContentSubtype("json"), standing in for the protobuf codec
// grpc selects by default when .proto-generated types are available.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return "json" }
