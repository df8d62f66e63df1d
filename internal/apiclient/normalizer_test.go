package apiclient

import "testing"

type entityPayload struct {
	ID string `json:"id"`
}

func TestDecodeEntityUnwrapsDataEnvelope(t *testing.T) {
	var entity entityPayload
	if err := DecodeEntity([]byte(`{"data": {"id": "x"}}`), &entity); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if entity.ID != "x" {
		t.Fatalf("expected id x, got %q", entity.ID)
	}
}

func TestDecodeEntityPassesRawPayloadThrough(t *testing.T) {
	var entity entityPayload
	if err := DecodeEntity([]byte(`{"id": "x"}`), &entity); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if entity.ID != "x" {
		t.Fatalf("expected id x, got %q", entity.ID)
	}
}

func TestDecodeEntityRejectsGarbage(t *testing.T) {
	var entity entityPayload
	if err := DecodeEntity([]byte(`not json`), &entity); err == nil {
		t.Fatalf("expected decode error for invalid JSON")
	}
}

func TestDecodeListLeavesEnvelopeUntouched(t *testing.T) {
	var envelope struct {
		Data  []entityPayload `json:"data"`
		Page  int             `json:"page"`
		Total int64           `json:"total"`
	}
	raw := []byte(`{"data": [{"id": "a"}, {"id": "b"}], "page": 2, "total": 17}`)
	if err := DecodeList(raw, &envelope); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(envelope.Data) != 2 || envelope.Data[1].ID != "b" {
		t.Fatalf("unexpected data: %#v", envelope.Data)
	}
	if envelope.Page != 2 || envelope.Total != 17 {
		t.Fatalf("pagination metadata lost: %#v", envelope)
	}
}

func TestDetectShape(t *testing.T) {
	if detectShape([]byte(`{"data": 1}`)) != payloadShapeWrapped {
		t.Fatalf("expected wrapped shape")
	}
	if detectShape([]byte(`{"id": 1}`)) != payloadShapeRaw {
		t.Fatalf("expected raw shape for plain object")
	}
	if detectShape([]byte(`[1, 2]`)) != payloadShapeRaw {
		t.Fatalf("expected raw shape for array")
	}
}
