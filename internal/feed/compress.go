package feed

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedExt marks zstd-compressed documents.
const CompressedExt = ".zst"

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Compress returns src as a zstd frame.
func Compress(src []byte) []byte {
	return encoder.EncodeAll(src, make([]byte, 0, len(src)))
}

// Decompress returns the content of a zstd frame.
func Decompress(src []byte) ([]byte, error) {
	return decoder.DecodeAll(src, nil)
}

// maybeDecompress inflates data when its name or magic bytes say it is
// zstd, and returns the name without the compression extension.
func maybeDecompress(name string, data []byte) (string, []byte, error) {
	if !strings.HasSuffix(name, CompressedExt) && !bytes.HasPrefix(data, zstdMagic) {
		return name, data, nil
	}
	out, err := Decompress(data)
	if err != nil {
		return "", nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	return strings.TrimSuffix(name, CompressedExt), out, nil
}

// LoadBootstrap reads the bundled bootstrap document, plain or
// zstd-compressed.
func LoadBootstrap(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("load bootstrap: %w", err)
	}
	name, data, err := maybeDecompress(filepath.Base(path), data)
	if err != nil {
		return File{}, fmt.Errorf("load bootstrap: %w", err)
	}
	return File{Name: name, Data: data, Bootstrap: true}, nil
}
