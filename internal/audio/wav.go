package audio

import (
	"encoding/binary"
	"fmt"
)

// Format describes PCM audio. The pipeline normalizes everything to mono
// 16kHz 16-bit, the speech model's required input.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

func (f Format) FrameSize() int {
	return f.Channels * f.BitsPerSample / 8
}

// Duration converts a payload byte count to seconds.
func (f Format) Duration(n int) float64 {
	return float64(n) / float64(f.BytesPerSecond())
}

// DecodeWAV parses a RIFF/WAVE file and returns its format and raw PCM
// payload. Only uncompressed PCM is accepted.
func DecodeWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var f Format
	var payload []byte
	haveFmt := false

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		if pos+size > len(data) {
			size = len(data) - pos
		}
		chunk := data[pos : pos+size]

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, nil, fmt.Errorf("truncated fmt chunk")
			}
			audioFormat := binary.LittleEndian.Uint16(chunk[0:2])
			if audioFormat != 1 {
				return Format{}, nil, fmt.Errorf("unsupported wav encoding %d (want PCM)", audioFormat)
			}
			f.Channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(chunk[14:16]))
			haveFmt = true
		case "data":
			payload = chunk
		}

		pos += size
		if size%2 == 1 {
			pos++ // chunks are word aligned
		}
	}

	if !haveFmt {
		return Format{}, nil, fmt.Errorf("missing fmt chunk")
	}
	if f.SampleRate <= 0 || f.Channels <= 0 || f.BitsPerSample <= 0 {
		return Format{}, nil, fmt.Errorf("invalid wav format %+v", f)
	}
	if payload == nil {
		return Format{}, nil, fmt.Errorf("missing data chunk")
	}
	return f, payload, nil
}

// EncodeWAV writes a canonical 44-byte-header WAV file around a PCM payload.
func EncodeWAV(f Format, payload []byte) []byte {
	out := make([]byte, 44+len(payload))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(payload)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(f.BytesPerSecond()))
	binary.LittleEndian.PutUint16(out[32:34], uint16(f.FrameSize()))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.BitsPerSample))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(payload)))
	copy(out[44:], payload)
	return out
}
