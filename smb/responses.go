package smb

import (
	"encoding/binary"
	"time"

	"smbls/smb/encoder"
)

// Responses are thin views over the raw payload delivered by the
// framer: fields are read by byte offset, nothing is copied until a
// value leaves the package.

type sessionSetupResDecoder []byte

func (res sessionSetupResDecoder) SessionID() uint64 {
	return binary.LittleEndian.Uint64(res[40:48])
}

// SecurityBuffer locates the server's challenge token through the
// offset and length fields of the fixed body.
func (res sessionSetupResDecoder) SecurityBuffer() []byte {
	off := binary.LittleEndian.Uint16(res[headerSize+4 : headerSize+6])
	n := binary.LittleEndian.Uint16(res[headerSize+6 : headerSize+8])
	return res[off : off+n]
}

type treeConnectResDecoder []byte

func (res treeConnectResDecoder) TreeID() uint32 {
	return binary.LittleEndian.Uint32(res[36:40])
}

type createResDecoder []byte

func (res createResDecoder) FileId() (id [16]byte) {
	copy(id[:], res[128:144])
	return id
}

type queryDirectoryResDecoder []byte

func (res queryDirectoryResDecoder) OutputBuffer() []byte {
	off := binary.LittleEndian.Uint16(res[headerSize+2 : headerSize+4])
	n := binary.LittleEndian.Uint32(res[headerSize+4 : headerSize+8])
	return res[off : uint32(off)+n]
}

// SharedFile is one directory entry as reported by the server.
type SharedFile struct {
	Name           string
	Size           uint64
	AllocationSize uint64
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	Attributes     uint32
	IsDir          bool
	IsHidden       bool
	IsReadOnly     bool
}

// Fixed offsets within a FILE_BOTH_DIR_INFORMATION record
// (MS-FSCC 2.4.8). The filename follows the 24-byte short name block.
const (
	dirInfoNextEntryOffset = 0
	dirInfoCreationTime    = 8
	dirInfoLastAccessTime  = 16
	dirInfoLastWriteTime   = 24
	dirInfoChangeTime      = 32
	dirInfoEndOfFile       = 40
	dirInfoAllocationSize  = 48
	dirInfoFileAttributes  = 56
	dirInfoFileNameLength  = 60
	dirInfoFileName        = 94
)

// decodeDirectoryInfo walks a chain of FILE_BOTH_DIR_INFORMATION
// records. Each record states the byte distance to the next; zero
// marks the last record in the blob. Pseudo-entries "." and ".." are
// kept here and filtered by the caller so that pagination stays a
// concern of the session.
func decodeDirectoryInfo(blob []byte) ([]SharedFile, error) {
	var files []SharedFile
	for cur := blob; ; {
		next := binary.LittleEndian.Uint32(cur[dirInfoNextEntryOffset:])
		nameLen := binary.LittleEndian.Uint32(cur[dirInfoFileNameLength:])
		name, err := encoder.FromUnicodeString(cur[dirInfoFileName : dirInfoFileName+nameLen])
		if err != nil {
			log.Errorln(err)
			return files, err
		}
		attrs := binary.LittleEndian.Uint32(cur[dirInfoFileAttributes:])
		files = append(files, SharedFile{
			Name:           name,
			Size:           binary.LittleEndian.Uint64(cur[dirInfoEndOfFile:]),
			AllocationSize: binary.LittleEndian.Uint64(cur[dirInfoAllocationSize:]),
			CreationTime:   encoder.FiletimeToTime(binary.LittleEndian.Uint64(cur[dirInfoCreationTime:])),
			LastAccessTime: encoder.FiletimeToTime(binary.LittleEndian.Uint64(cur[dirInfoLastAccessTime:])),
			LastWriteTime:  encoder.FiletimeToTime(binary.LittleEndian.Uint64(cur[dirInfoLastWriteTime:])),
			ChangeTime:     encoder.FiletimeToTime(binary.LittleEndian.Uint64(cur[dirInfoChangeTime:])),
			Attributes:     attrs,
			IsDir:          attrs&FileAttrDirectory != 0,
			IsHidden:       attrs&FileAttrHidden != 0,
			IsReadOnly:     attrs&FileAttrReadonly != 0,
		})
		if next == 0 {
			return files, nil
		}
		cur = cur[next:]
	}
}
