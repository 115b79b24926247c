package protocol

import "encoding/base64"

// Chunk payloads use standard base64 with padding.

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeChunk returns the raw bytes carried by a data frame.
func (f StreamFrame) DecodeChunk() ([]byte, error) {
	if !f.B64 {
		return []byte(f.Chunk), nil
	}
	return base64.StdEncoding.DecodeString(f.Chunk)
}
