package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestMulawToPCM(t *testing.T) {
	pcm := MulawToPCM([]byte{0x00, 0x7F, 0xFF, 0x80})
	want := []int16{-32124, 0, 0, 32124}
	for i, v := range want {
		if pcm[i] != v {
			t.Errorf("sample %d: expected %d, got %d", i, v, pcm[i])
		}
	}
}

func TestMulawRMS(t *testing.T) {
	if rms := MulawRMS(nil); rms != 0 {
		t.Errorf("empty frame should have zero energy, got %v", rms)
	}
	if rms := MulawRMS(bytes.Repeat([]byte{0xFF}, 160)); rms != 0 {
		t.Errorf("silent frame should have zero energy, got %v", rms)
	}
	loud := MulawRMS(bytes.Repeat([]byte{0x00}, 160))
	if loud < 32000 || loud > 32200 {
		t.Errorf("full-scale frame RMS out of range: %v", loud)
	}
}

func TestPCMBytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	got, err := BytesToPCM(PCMToBytes(samples))
	if err != nil {
		t.Fatalf("BytesToPCM failed: %v", err)
	}
	for i, v := range samples {
		if got[i] != v {
			t.Errorf("sample %d: expected %d, got %d", i, v, got[i])
		}
	}
}

func TestBytesToPCMOddLength(t *testing.T) {
	if _, err := BytesToPCM([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("expected error for odd-length input")
	}
}

func TestPCMToWAVHeader(t *testing.T) {
	samples := []int16{100, -100, 200, -200}
	wav := PCMToWAV(samples, 8000)

	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", 44+len(samples)*2, len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 8000 {
		t.Errorf("expected sample rate 8000, got %d", rate)
	}
	if ch := binary.LittleEndian.Uint16(wav[22:24]); ch != 1 {
		t.Errorf("expected mono, got %d channels", ch)
	}
	if bits := binary.LittleEndian.Uint16(wav[34:36]); bits != 16 {
		t.Errorf("expected 16 bits per sample, got %d", bits)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(samples)*2) {
		t.Errorf("expected data size %d, got %d", len(samples)*2, size)
	}
}

func TestMulawToWAV(t *testing.T) {
	wav := MulawToWAV(bytes.Repeat([]byte{0x00}, 160), 8000)
	if len(wav) != 44+160*2 {
		t.Fatalf("expected %d bytes, got %d", 44+160*2, len(wav))
	}
}
