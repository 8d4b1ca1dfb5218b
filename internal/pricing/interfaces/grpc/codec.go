package grpc

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// listKey 列表结果在 Struct 中的字段名
const listKey = "items"

// decodeStruct 将 Struct 按 JSON 标签解码到 v
func decodeStruct(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// encodeStruct 将 v 按 JSON 标签编码为 Struct，v 必须编码为 JSON 对象
func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeList[T any](items []T) (*structpb.Struct, error) {
	if items == nil {
		items = []T{}
	}
	return encodeStruct(map[string]any{listKey: items})
}

func decodeList[T any](in *structpb.Struct) ([]T, error) {
	var wrapper struct {
		Items []T `json:"items"`
	}
	if err := decodeStruct(in, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Items, nil
}
