package vector

import (
	"bytes"
	"testing"
)

func TestEncodeEmbedding_Layout(t *testing.T) {
	b, err := EncodeEmbedding([]float32{1, -2})
	if err != nil {
		t.Fatalf("EncodeEmbedding failed: %v", err)
	}
	want := []byte{0x00, 0x00, 0x80, 0x3F, 0x00, 0x00, 0x00, 0xC0}
	if !bytes.Equal(b, want) {
		t.Fatalf("blob = % x, want % x", b, want)
	}

	empty, err := EncodeEmbedding(nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("EncodeEmbedding(nil) = %v, %v; want empty", empty, err)
	}
}

func TestDecodeEmbedding_FaceSized(t *testing.T) {
	face := make([]float32, 128)
	for i := range face {
		face[i] = float32(i) / 128
	}
	b, _ := EncodeEmbedding(face)
	if len(b) != 512 {
		t.Fatalf("blob length = %d, want 512", len(b))
	}
	got, err := DecodeEmbeddingDim(b, 128)
	if err != nil {
		t.Fatalf("DecodeEmbeddingDim failed: %v", err)
	}
	if got[127] != face[127] || got[1] != face[1] {
		t.Fatalf("decoded values differ: got[1]=%v got[127]=%v", got[1], got[127])
	}
}

func TestDecodeEmbedding_Errors(t *testing.T) {
	b, _ := EncodeEmbedding([]float32{1, 2, 3})
	if _, err := DecodeEmbeddingDim(b, 128); err == nil {
		t.Fatalf("expected dimension error")
	}
	if _, err := DecodeEmbedding(b[:5]); err == nil {
		t.Fatalf("expected length error")
	}
	if vec, err := DecodeEmbedding(nil); err != nil || vec != nil {
		t.Fatalf("DecodeEmbedding(nil) = %v, %v; want nil, nil", vec, err)
	}
}
