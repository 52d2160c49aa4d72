// Package audio captures the caller's PCM stream during a session and turns
// it into a WAV recording in object storage when the session finalizes.
package audio

import "encoding/binary"

const wavHeaderSize = 44

// Format describes raw PCM audio: little-endian signed 16-bit samples.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// WAVFile wraps raw PCM bytes in a RIFF/WAVE container.
func WAVFile(pcm []byte, f Format) []byte {
	out := make([]byte, wavHeaderSize+len(pcm))
	writeWAVHeader(out[:wavHeaderSize], f, len(pcm))
	copy(out[wavHeaderSize:], pcm)
	return out
}

func writeWAVHeader(dst []byte, f Format, dataSize int) {
	byteRate := f.SampleRate * f.Channels * f.BitsPerSample / 8
	blockAlign := f.Channels * f.BitsPerSample / 8

	copy(dst[0:4], "RIFF")
	binary.LittleEndian.PutUint32(dst[4:8], uint32(36+dataSize))
	copy(dst[8:12], "WAVE")
	copy(dst[12:16], "fmt ")
	binary.LittleEndian.PutUint32(dst[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(dst[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(dst[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(dst[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(dst[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(dst[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(dst[34:36], uint16(f.BitsPerSample))
	copy(dst[36:40], "data")
	binary.LittleEndian.PutUint32(dst[40:44], uint32(dataSize))
}
