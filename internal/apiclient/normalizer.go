package apiclient

import (
	"encoding/json"
	"fmt"
)

// payloadShape tags how a backend payload is packaged. The Copay backends are
// inconsistent: some endpoints wrap the entity in a {"data": ...} envelope
// and some return it bare, so decoding is an explicit two-branch step rather
// than ad hoc property sniffing.
type payloadShape int

const (
	payloadShapeRaw payloadShape = iota
	payloadShapeWrapped
)

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// detectShape reports whether raw is an object carrying a data field.
func detectShape(raw []byte) payloadShape {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return payloadShapeRaw
	}
	if _, ok := probe["data"]; ok {
		return payloadShapeWrapped
	}
	return payloadShapeRaw
}

// DecodeEntity unmarshals a single-entity payload into out, unwrapping the
// {"data": ...} envelope when present.
func DecodeEntity(raw []byte, out any) error {
	switch detectShape(raw) {
	case payloadShapeWrapped:
		var envelope dataEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return fmt.Errorf("normalizer.decode_entity: %w", err)
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("normalizer.decode_entity: %w", err)
		}
		return nil
	default:
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("normalizer.decode_entity: %w", err)
		}
		return nil
	}
}

// DecodeList unmarshals a paginated listing payload untouched. Pagination
// metadata shape varies by endpoint, so callers read data plus metadata from
// out themselves.
func DecodeList(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("normalizer.decode_list: %w", err)
	}
	return nil
}
