package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// decodeStruct maps a Struct message onto a JSON-tagged Go value.
func decodeStruct(in *structpb.Struct, target any) error {
	if in == nil {
		return fmt.Errorf("request message is required")
	}
	//1.- Struct values are JSON-shaped already, so a JSON hop reuses the transport tags.
	payload, err := json.Marshal(in.AsMap())
	if err != nil {
		return fmt.Errorf("encode struct: %w", err)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}

// encodeStruct converts a JSON-tagged Go value into a Struct message.
func encodeStruct(value any) (*structpb.Struct, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	return structpb.NewStruct(fields)
}
