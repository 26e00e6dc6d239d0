package tensorheader

import (
	"encoding/json"
	"testing"
)

func TestOrderedMapPreservesKeyOrder(t *testing.T) {
	const src = `{"zeta":1,"alpha":2,"mid":3}`
	om := NewOrderedMap[int]()
	if err := om.UnmarshalJSON([]byte(src)); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	got := om.Keys()
	want := []string{"zeta", "alpha", "mid"}
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	out, err := om.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(out) != src {
		t.Fatalf("MarshalJSON round-trip = %s, want %s", out, src)
	}
}

func TestOrderedMapRejectsNonObject(t *testing.T) {
	om := NewOrderedMap[int]()
	if err := om.UnmarshalJSON([]byte(`[1,2,3]`)); err == nil {
		t.Fatal("expected error decoding a JSON array into OrderedMap")
	}
}

func TestRawTensorMetaDataRoundTripsExtraInOrder(t *testing.T) {
	const src = `{"dtype":"F32","shape":[2,3],"data_offsets":[0,24],"z_field":"z","a_field":"a"}`
	var tm RawTensorMetaData
	if err := json.Unmarshal([]byte(src), &tm); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if tm.Dtype != "F32" {
		t.Fatalf("Dtype = %q, want F32", tm.Dtype)
	}
	if len(tm.Shape) != 2 || tm.Shape[0] != 2 || tm.Shape[1] != 3 {
		t.Fatalf("Shape = %v, want [2 3]", tm.Shape)
	}
	if tm.DataOffsets != [2]int64{0, 24} {
		t.Fatalf("DataOffsets = %v, want [0 24]", tm.DataOffsets)
	}
	extraKeys := tm.Extra.Keys()
	if len(extraKeys) != 2 || extraKeys[0] != "z_field" || extraKeys[1] != "a_field" {
		t.Fatalf("Extra.Keys() = %v, want [z_field a_field]", extraKeys)
	}

	out, err := json.Marshal(tm)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var roundTripped RawTensorMetaData
	if err := json.Unmarshal(out, &roundTripped); err != nil {
		t.Fatalf("Unmarshal round-trip: %v", err)
	}
	if roundTripped.Dtype != tm.Dtype {
		t.Fatalf("round-tripped Dtype = %q, want %q", roundTripped.Dtype, tm.Dtype)
	}
	zVal, ok := roundTripped.Extra.Get("z_field")
	if !ok || string(zVal) != `"z"` {
		t.Fatalf("round-tripped z_field = %s, ok=%v, want \"z\"", zVal, ok)
	}
}

func TestRawTensorMetaDataMissingFieldErrors(t *testing.T) {
	var tm RawTensorMetaData
	if err := json.Unmarshal([]byte(`{"dtype":"F32","data_offsets":[0,4]}`), &tm); err == nil {
		t.Fatal("expected error for missing shape field")
	}
}

func TestDtypeSize(t *testing.T) {
	cases := map[string]int64{
		"F32": 4, "F16": 2, "BF16": 2, "F64": 8,
		"I64": 8, "I32": 4, "I16": 2, "I8": 1, "U8": 1, "BOOL": 1,
	}
	for dtype, want := range cases {
		got, ok := DtypeSize(dtype)
		if !ok || got != want {
			t.Errorf("DtypeSize(%q) = %d, %v, want %d, true", dtype, got, ok, want)
		}
	}
	if _, ok := DtypeSize("F8E4M3"); ok {
		t.Error("DtypeSize(\"F8E4M3\") should be unrecognized")
	}
}

func TestElementCount(t *testing.T) {
	if got := ElementCount([]int64{2, 3, 4}); got != 24 {
		t.Errorf("ElementCount([2 3 4]) = %d, want 24", got)
	}
	if got := ElementCount(nil); got != 1 {
		t.Errorf("ElementCount(nil) = %d, want 1 (scalar)", got)
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"layer.0.weight", "embed_tokens", "a"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}
	invalid := []string{"", "/abs", "a/b", "a\\b", "..", "a..b", "has\x00null"}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}
