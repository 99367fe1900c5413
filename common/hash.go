package common

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

func Keccak256(data ...[]byte) Hash {
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d)
	}
	return BytesToHash(hash.Sum(nil))
}

// All wire integers are big-endian.

func Uint16ToBytes(value uint16) []byte {
	bytes := make([]byte, 2)
	binary.BigEndian.PutUint16(bytes, value)
	return bytes
}

func Uint32ToBytes(val uint32) []byte {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, val)
	return bytes
}

func Uint64ToBytes(val uint64) []byte {
	bytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bytes, val)
	return bytes
}

func BytesToUint16(data []byte) (uint16, error) {
	if len(data) != 2 {
		return 0, fmt.Errorf("BytesToUint16: want 2 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint16(data), nil
}

func BytesToUint32(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("BytesToUint32: want 4 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}

func BytesToUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("BytesToUint64: want 8 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// LeftPadBytes zero-pads b on the left to width. Inputs longer than width are rejected.
func LeftPadBytes(b []byte, width int) ([]byte, error) {
	if len(b) > width {
		return nil, fmt.Errorf("value of %d bytes exceeds width %d", len(b), width)
	}
	out := make([]byte, width)
	copy(out[width-len(b):], b)
	return out, nil
}

// LeftPadHex decodes a hex string (with or without 0x, odd length allowed) and
// left-pads the result to width bytes.
func LeftPadHex(s string, width int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return LeftPadBytes(raw, width)
}

// TrimRightZeros prints a zero-padded fixed-width text field.
func TrimRightZeros(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
