// Package rpc is the broker's concrete streaming-RPC transport: a real
// google.golang.org/grpc server and client pair whose wire messages are
// plain Go structs carried by a JSON codec rather than generated protobuf
// types. spec.md treats "the transport (a streaming RPC framework)" as an
// external contract the broker core never depends on directly
// (internal/broker only knows about the Sender interface); this package is
// the one concrete implementation of that contract.
package rpc

import "encoding/json"

import "google.golang.org/grpc/encoding"

// Name is the content-subtype registered with grpc-go: requests and
// responses travel as application/grpc+json instead of the usual
// application/grpc+proto.
const Name = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec satisfies encoding.Codec using encoding/json. Registering it
// through grpc's real codec registry (rather than fabricating a transport)
// lets this package use an unmodified grpc-go server and client end to end.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return Name
}
