// Package serializer converts common.Message values to bytes and back for the RPC
// transport.
//
// Implementations:
//
//   - binarySerializerImpl: a compact custom format. A flag byte marks which optional
//     fields follow, so a vote command costs only a few bytes more than its payload.
//
//   - jsonSerializerImpl: encoding/json, readable on the wire and useful with curl.
//
//   - gobSerializerImpl: encoding/gob, kept for comparison in the benchmarks.
//
// All serializers are stateless and safe for concurrent use.
//
// Usage:
//
//	s, err := serializer.ByName("binary")
//	data, err := s.Serialize(*common.NewApplyRequest(cmd))
//	var msg common.Message
//	err = s.Deserialize(data, &msg)
package serializer
