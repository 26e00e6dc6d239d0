package manifest

import (
	"errors"
	"testing"

	"github.com/tgit-dev/tgit/internal/tgiterr"
)

func TestEncodeIsDeterministicAcrossKeyOrder(t *testing.T) {
	m := Manifest{
		Version:   CurrentVersion,
		TotalSize: 100,
		Tensors: map[string]Tensor{
			"zeta":  {Shape: []int64{1}, Dtype: "F32", Hash: "aa", Index: 1},
			"alpha": {Shape: []int64{2}, Dtype: "F32", Hash: "bb", Index: 0},
		},
	}
	out1, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Re-encode from a map built in the opposite insertion order; Go map
	// iteration order is randomized, so if MarshalJSON didn't sort keys
	// itself this would be flaky.
	m2 := Manifest{Version: m.Version, TotalSize: m.TotalSize, Tensors: map[string]Tensor{}}
	m2.Tensors["alpha"] = m.Tensors["alpha"]
	m2.Tensors["zeta"] = m.Tensors["zeta"]
	out2, err := Encode(m2)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(out1) != string(out2) {
		t.Fatalf("Encode() not deterministic:\n%s\nvs\n%s", out1, out2)
	}

	wantPrefix := `{"version":"1.0","total_size":100,"tensors":{"alpha"`
	if len(out1) < len(wantPrefix) || string(out1[:len(wantPrefix)]) != wantPrefix {
		t.Fatalf("Encode() = %s, want tensors sorted with \"alpha\" first", out1)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	m := Manifest{
		Version:   CurrentVersion,
		TotalSize: 42,
		Tensors: map[string]Tensor{
			"weight": {Shape: []int64{4, 4}, Dtype: "F32", Hash: "abc123", Index: 0},
		},
	}
	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Version != m.Version || got.TotalSize != m.TotalSize {
		t.Fatalf("Decode() = %+v, want %+v", got, m)
	}
	tensor, ok := got.Tensors["weight"]
	if !ok || tensor.Hash != "abc123" || tensor.Index != 0 {
		t.Fatalf("Decode() tensors[weight] = %+v", tensor)
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	_, err := Decode([]byte(`{"version":"2.0","total_size":0,"tensors":{}}`))
	if !errors.Is(err, tgiterr.ErrUnsupportedVersion) {
		t.Fatalf("Decode() error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	if !errors.Is(err, tgiterr.ErrInvalidManifest) {
		t.Fatalf("Decode() error = %v, want ErrInvalidManifest", err)
	}
}

func TestValidateAndMigratePassesCurrentVersion(t *testing.T) {
	m := Manifest{Version: CurrentVersion, Tensors: map[string]Tensor{}}
	got, err := m.ValidateAndMigrate()
	if err != nil {
		t.Fatalf("ValidateAndMigrate: %v", err)
	}
	if got.Version != CurrentVersion {
		t.Fatalf("ValidateAndMigrate().Version = %q, want %q", got.Version, CurrentVersion)
	}
}
