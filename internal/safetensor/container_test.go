package safetensor

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tgit-dev/tgit/internal/tgiterr"
)

func writeContainer(t *testing.T, headerJSON string, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.safetensors")

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerJSON)))

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(lenBuf[:]); err != nil {
		t.Fatalf("writing length prefix: %v", err)
	}
	if _, err := f.Write([]byte(headerJSON)); err != nil {
		t.Fatalf("writing header: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("writing data: %v", err)
	}
	return path
}

func TestOpenParsesHeaderAndBytes(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	header := `{"weight":{"dtype":"F32","shape":[2],"data_offsets":[0,8]}}`
	path := writeContainer(t, header, data)

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	meta, ok := c.Header().Get("weight")
	if !ok {
		t.Fatal("header missing \"weight\" entry")
	}
	got, err := c.Bytes(meta)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("Bytes() = %v, want %v", got, data)
	}
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.safetensors")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Open(path)
	if !errors.Is(err, tgiterr.ErrCorruptHeader) {
		t.Fatalf("Open() error = %v, want ErrCorruptHeader", err)
	}
}

func TestOpenRejectsInvalidHeaderJSON(t *testing.T) {
	path := writeContainer(t, `not json`, nil)
	_, err := Open(path)
	if !errors.Is(err, tgiterr.ErrCorruptHeader) {
		t.Fatalf("Open() error = %v, want ErrCorruptHeader", err)
	}
}

func TestBytesRejectsOutOfRangeOffsets(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	header := `{"weight":{"dtype":"F32","shape":[2],"data_offsets":[0,100]}}`
	path := writeContainer(t, header, data)

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	meta, _ := c.Header().Get("weight")
	_, err = c.Bytes(meta)
	if !errors.Is(err, tgiterr.ErrCorruptTensor) {
		t.Fatalf("Bytes() error = %v, want ErrCorruptTensor", err)
	}
}
