package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ProtobufContentType = "application/x-protobuf"
	ZstdEncoding        = "zstd"
)

// MarshalReport serialises a report as a protobuf Struct.
func MarshalReport(report *Report) ([]byte, error) {
	pb, err := reportStruct(report)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(pb)
}

// EncodeReport is MarshalReport followed by zstd compression.
func EncodeReport(report *Report) ([]byte, error) {
	b, err := MarshalReport(report)
	if err != nil {
		return nil, err
	}
	return compress(b)
}

// DecodeReport reverses EncodeReport.
func DecodeReport(data []byte) (*Report, error) {
	b, err := decompress(data)
	if err != nil {
		return nil, err
	}
	return UnmarshalReport(b)
}

// UnmarshalReport reverses MarshalReport.
func UnmarshalReport(b []byte) (*Report, error) {
	pb := &structpb.Struct{}
	if err := proto.Unmarshal(b, pb); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(pb.AsMap())
	if err != nil {
		return nil, err
	}
	report := &Report{}
	if err := json.Unmarshal(raw, report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}

// reportStruct goes through the report's JSON form so field names match the JSON API.
func reportStruct(report *Report) (*structpb.Struct, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

func compress(input []byte) ([]byte, error) {
	var b bytes.Buffer
	encoder, err := zstd.NewWriter(&b, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, err
	}

	_, err = encoder.Write(input)
	if err != nil {
		encoder.Close()
		return nil, err
	}

	err = encoder.Close()
	if err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func decompress(input []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(decoder)
	if err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}
