package smb

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smbls/smb/encoder"
)

// makeDirEntry builds one FILE_BOTH_DIR_INFORMATION record with a zero
// next-entry distance; makeDirListing links records into a chain.
func makeDirEntry(name string, size uint64, attrs uint32, written time.Time) []byte {
	wname := encoder.ToUnicode(name)
	buf := make([]byte, dirInfoFileName+len(wname))
	binary.LittleEndian.PutUint64(buf[dirInfoCreationTime:], encoder.TimeToFiletime(written))
	binary.LittleEndian.PutUint64(buf[dirInfoLastAccessTime:], encoder.TimeToFiletime(written))
	binary.LittleEndian.PutUint64(buf[dirInfoLastWriteTime:], encoder.TimeToFiletime(written))
	binary.LittleEndian.PutUint64(buf[dirInfoChangeTime:], encoder.TimeToFiletime(written))
	binary.LittleEndian.PutUint64(buf[dirInfoEndOfFile:], size)
	binary.LittleEndian.PutUint64(buf[dirInfoAllocationSize:], size)
	binary.LittleEndian.PutUint32(buf[dirInfoFileAttributes:], attrs)
	binary.LittleEndian.PutUint32(buf[dirInfoFileNameLength:], uint32(len(wname)))
	copy(buf[dirInfoFileName:], wname)
	return buf
}

func makeDirListing(entries ...[]byte) []byte {
	var blob []byte
	for i, e := range entries {
		if i < len(entries)-1 {
			// Records are 8-aligned on the wire.
			pad := len(e) % 8
			if pad != 0 {
				pad = 8 - pad
			}
			binary.LittleEndian.PutUint32(e[dirInfoNextEntryOffset:], uint32(len(e)+pad))
			e = append(e, make([]byte, pad)...)
		}
		blob = append(blob, e...)
	}
	return blob
}

func TestDecodeDirectoryInfoSingleEntry(t *testing.T) {
	written := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	blob := makeDirListing(makeDirEntry("notes.txt", 1234, 0, written))

	files, err := decodeDirectoryInfo(blob)
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, "notes.txt", f.Name)
	assert.Equal(t, uint64(1234), f.Size)
	assert.Equal(t, written, f.LastWriteTime)
	assert.False(t, f.IsDir)
	assert.False(t, f.IsHidden)
}

func TestDecodeDirectoryInfoChain(t *testing.T) {
	now := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	blob := makeDirListing(
		makeDirEntry(".", 0, FileAttrDirectory, now),
		makeDirEntry("..", 0, FileAttrDirectory, now),
		makeDirEntry("docs", 0, FileAttrDirectory, now),
		makeDirEntry(".hidden", 10, FileAttrHidden, now),
		makeDirEntry("readme.md", 42, FileAttrReadonly, now),
	)

	files, err := decodeDirectoryInfo(blob)
	require.NoError(t, err)
	require.Len(t, files, 5)

	// Pseudo-entries survive decoding; filtering is the session's job.
	assert.Equal(t, ".", files[0].Name)
	assert.Equal(t, "..", files[1].Name)

	assert.True(t, files[2].IsDir)
	assert.True(t, files[3].IsHidden)
	assert.False(t, files[3].IsDir)
	assert.True(t, files[4].IsReadOnly)
	assert.Equal(t, uint64(42), files[4].Size)
}

func TestSessionSetupResDecoder(t *testing.T) {
	buf := make([]byte, 64+8+4)
	binary.LittleEndian.PutUint64(buf[40:48], 0xaabbccdd)
	binary.LittleEndian.PutUint16(buf[64+4:], 72) // blob offset
	binary.LittleEndian.PutUint16(buf[64+6:], 4)  // blob length
	copy(buf[72:], []byte{1, 2, 3, 4})

	res := sessionSetupResDecoder(buf)
	assert.Equal(t, uint64(0xaabbccdd), res.SessionID())
	assert.Equal(t, []byte{1, 2, 3, 4}, res.SecurityBuffer())
}

func TestTreeConnectResDecoder(t *testing.T) {
	buf := make([]byte, 64+16)
	binary.LittleEndian.PutUint32(buf[36:40], 3)
	assert.Equal(t, uint32(3), treeConnectResDecoder(buf).TreeID())
}

func TestCreateResDecoder(t *testing.T) {
	buf := make([]byte, 64+88)
	copy(buf[128:144], "0123456789abcdef")
	id := createResDecoder(buf).FileId()
	assert.Equal(t, "0123456789abcdef", string(id[:]))
}

func TestQueryDirectoryResDecoder(t *testing.T) {
	blob := []byte{0xca, 0xfe, 0xba, 0xbe}
	buf := make([]byte, 64+8+len(blob))
	binary.LittleEndian.PutUint16(buf[64+2:], 72)
	binary.LittleEndian.PutUint32(buf[64+4:], uint32(len(blob)))
	copy(buf[72:], blob)

	assert.Equal(t, blob, queryDirectoryResDecoder(buf).OutputBuffer())
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Status: StatusAccessDenied, Expected: StatusOk}
	assert.Equal(t, "server returned STATUS_ACCESS_DENIED", err.Error())

	err = &StatusError{Status: 0xdeadbeef, Expected: StatusOk}
	assert.Equal(t, "server returned unknown status 0xdeadbeef, expected 0x00000000", err.Error())
}
