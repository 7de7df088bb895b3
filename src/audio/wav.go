package audio

import (
	"bytes"
	"encoding/binary"
)

// wavHeaderSize is the size of a canonical PCM WAV header
const wavHeaderSize = 44

// PCMToWAV wraps 16-bit mono PCM samples in a WAV container.
// The transcription API needs a real audio file, not raw sample bytes.
func PCMToWAV(pcm []int16, sampleRate int) []byte {
	data := PCMToBytes(pcm)

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(data)))
	le := binary.LittleEndian

	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf.WriteString("RIFF")
	binary.Write(buf, le, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, le, uint32(16))
	binary.Write(buf, le, uint16(1)) // PCM
	binary.Write(buf, le, uint16(channels))
	binary.Write(buf, le, uint32(sampleRate))
	binary.Write(buf, le, uint32(byteRate))
	binary.Write(buf, le, uint16(blockAlign))
	binary.Write(buf, le, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, le, uint32(len(data)))
	buf.Write(data)

	return buf.Bytes()
}

// MulawToWAV converts raw mulaw audio to a 16-bit PCM WAV file
func MulawToWAV(mulaw []byte, sampleRate int) []byte {
	return PCMToWAV(MulawToPCM(mulaw), sampleRate)
}
