// Package writer encodes reports as JSON, optionally compressed.
package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/histobench/pkg/compression"
)

// JSONWriter writes values of type T as JSON.
type JSONWriter[T any] struct {
	// Indent specifies the indentation for pretty printing.
	// Empty string means compact output.
	Indent string

	// Compressor is applied to the encoded document. Nil writes plain JSON.
	Compressor compression.Compressor
}

// NewJSONWriter creates a new JSON writer with compact output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

// WithCompressor returns a copy of w that compresses its output with c.
func (w *JSONWriter[T]) WithCompressor(c compression.Compressor) *JSONWriter[T] {
	cp := *w
	cp.Compressor = c
	return &cp
}

// WriteResult contains statistics about an encoded document.
type WriteResult struct {
	JSONSize       int64
	CompressedSize int64
}

// Ratio returns the compressed size as a fraction of the JSON size.
func (r WriteResult) Ratio() float64 {
	if r.JSONSize == 0 {
		return 0
	}
	return float64(r.CompressedSize) / float64(r.JSONSize)
}

// Encode returns the encoded, possibly compressed, document.
func (w *JSONWriter[T]) Encode(data T) ([]byte, WriteResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if w.Indent != "" {
		enc.SetIndent("", w.Indent)
	}
	if err := enc.Encode(data); err != nil {
		return nil, WriteResult{}, fmt.Errorf("failed to encode data: %w", err)
	}

	res := WriteResult{JSONSize: int64(buf.Len()), CompressedSize: int64(buf.Len())}
	if w.Compressor == nil {
		return buf.Bytes(), res, nil
	}

	out, err := w.Compressor.Compress(buf.Bytes())
	if err != nil {
		return nil, WriteResult{}, fmt.Errorf("failed to compress data: %w", err)
	}
	res.CompressedSize = int64(len(out))
	return out, res, nil
}

// Write writes the document to writer.
func (w *JSONWriter[T]) Write(data T, writer io.Writer) (WriteResult, error) {
	out, res, err := w.Encode(data)
	if err != nil {
		return WriteResult{}, err
	}
	if _, err := writer.Write(out); err != nil {
		return WriteResult{}, fmt.Errorf("failed to write data: %w", err)
	}
	return res, nil
}

// WriteToFile writes the document to path, creating parent directories.
// The file is replaced atomically.
func (w *JSONWriter[T]) WriteToFile(data T, path string) (WriteResult, error) {
	out, res, err := w.Encode(data)
	if err != nil {
		return WriteResult{}, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WriteResult{}, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return WriteResult{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return WriteResult{}, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return WriteResult{}, fmt.Errorf("failed to rename file: %w", err)
	}
	return res, nil
}

// ReadFile decodes a document written by WriteToFile, detecting compression.
func ReadFile[T any](path string) (T, error) {
	var out T
	raw, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("failed to read file: %w", err)
	}
	data, err := compression.AutoDecompress(raw)
	if err != nil {
		return out, fmt.Errorf("failed to decompress file: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode file: %w", err)
	}
	return out, nil
}
