// Package encoder holds the small wire-format helpers shared by the
// smb and ntlmssp packages: UTF-16LE string conversion and FILETIME
// handling.
package encoder

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf16"
)

// Difference between the Windows epoch (1601-01-01) and the Unix epoch
// (1970-01-01) in milliseconds.
const epochDeltaMillis = 11644473600000

// ToUnicode converts a string to its UTF-16LE byte representation as
// used in SMB2 path buffers and NTLM message fields.
func ToUnicode(s string) []byte {
	codes := utf16.Encode([]rune(s))
	b := make([]byte, len(codes)*2)
	for i, c := range codes {
		binary.LittleEndian.PutUint16(b[i*2:], c)
	}
	return b
}

// FromUnicodeString converts a UTF-16LE byte buffer back to a string.
func FromUnicodeString(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("unicode buffer has odd length (%d)", len(b))
	}
	codes := make([]uint16, len(b)/2)
	for i := range codes {
		codes[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(codes)), nil
}

// FiletimeToTime converts a 64-bit FILETIME (100-nanosecond intervals
// since 1601-01-01 UTC) to a time.Time.
func FiletimeToTime(ft uint64) time.Time {
	ms := int64(ft/10000) - epochDeltaMillis
	return time.UnixMilli(ms).UTC()
}

// TimeToFiletime converts a time.Time to a 64-bit FILETIME.
func TimeToFiletime(t time.Time) uint64 {
	return uint64(t.UnixMilli()+epochDeltaMillis) * 10000
}
