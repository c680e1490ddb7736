// Package smb implements the client side of a small subset of the SMB2
// protocol: enough to negotiate a dialect, authenticate with NTLM and
// enumerate the contents of a directory on a share.
//
// This is not a general purpose, protocol-conformant SMB2 stack. Only
// the commands needed for directory listing are implemented, one
// request is in flight at a time, and responses from misbehaving
// servers are not defended against.
package smb

import (
	"encoding/binary"
	"fmt"

	"github.com/jfjallid/golog"
)

var log = golog.Get("smbls/smb")

const ProtocolSmb2 = "\xFESMB"

const headerSize = 64

const (
	DialectSmb_2_0_2 = 0x0202
	DialectSmb_2_1   = 0x0210
)

const (
	CommandNegotiate uint16 = iota
	CommandSessionSetup
	CommandLogoff
	CommandTreeConnect
	CommandTreeDisconnect
	CommandCreate
	CommandClose
	CommandFlush
	CommandRead
	CommandWrite
	CommandLock
	CommandIOCtl
	CommandCancel
	CommandEcho
	CommandQueryDirectory
)

// NTSTATUS values the client is expected to encounter.
const (
	StatusOk                     uint32 = 0x00000000
	StatusPending                uint32 = 0x00000103
	StatusBufferOverflow         uint32 = 0x80000005
	StatusNoMoreFiles            uint32 = 0x80000006
	StatusInvalidParameter       uint32 = 0xc000000d
	StatusNoSuchFile             uint32 = 0xc000000f
	StatusEndOfFile              uint32 = 0xc0000011
	StatusMoreProcessingRequired uint32 = 0xc0000016
	StatusAccessDenied           uint32 = 0xc0000022
	StatusObjectNameNotFound     uint32 = 0xc0000034
	StatusObjectPathNotFound     uint32 = 0xc000003a
	StatusLogonFailure           uint32 = 0xc000006d
	StatusBadNetworkName         uint32 = 0xc00000cc
	StatusNotADirectory          uint32 = 0xc0000103
	StatusUserSessionDeleted     uint32 = 0xc0000203
)

// StatusMap resolves known NTSTATUS values to their symbolic names.
var StatusMap = map[uint32]string{
	StatusOk:                     "STATUS_SUCCESS",
	StatusPending:                "STATUS_PENDING",
	StatusBufferOverflow:         "STATUS_BUFFER_OVERFLOW",
	StatusNoMoreFiles:            "STATUS_NO_MORE_FILES",
	StatusInvalidParameter:       "STATUS_INVALID_PARAMETER",
	StatusNoSuchFile:             "STATUS_NO_SUCH_FILE",
	StatusEndOfFile:              "STATUS_END_OF_FILE",
	StatusMoreProcessingRequired: "STATUS_MORE_PROCESSING_REQUIRED",
	StatusAccessDenied:           "STATUS_ACCESS_DENIED",
	StatusObjectNameNotFound:     "STATUS_OBJECT_NAME_NOT_FOUND",
	StatusObjectPathNotFound:     "STATUS_OBJECT_PATH_NOT_FOUND",
	StatusLogonFailure:           "STATUS_LOGON_FAILURE",
	StatusBadNetworkName:         "STATUS_BAD_NETWORK_NAME",
	StatusNotADirectory:          "STATUS_NOT_A_DIRECTORY",
	StatusUserSessionDeleted:     "STATUS_USER_SESSION_DELETED",
}

// StatusError reports a response status that differs from the status
// expected for that step of the exchange.
type StatusError struct {
	Status   uint32
	Expected uint32
}

func (e *StatusError) Error() string {
	if name, ok := StatusMap[e.Status]; ok {
		return fmt.Sprintf("server returned %s", name)
	}
	return fmt.Sprintf("server returned unknown status 0x%08x, expected 0x%08x", e.Status, e.Expected)
}

// checkStatus compares the status field of a response payload with the
// status expected for the current step. It is consulted after every
// round trip; there is no partial success for an individual message.
func checkStatus(payload []byte, expected uint32) error {
	got := responseStatus(payload)
	if got != expected {
		return &StatusError{Status: got, Expected: expected}
	}
	return nil
}

func responseStatus(payload []byte) uint32 {
	return binary.LittleEndian.Uint32(payload[8:12])
}

const (
	SecurityModeSigningDisabled uint16 = iota
	SecurityModeSigningEnabled
)

// MS-SMB2 2.2.13 impersonation levels.
const (
	ImpersonationLevelAnonymous uint32 = iota
	ImpersonationLevelIdentification
	ImpersonationLevelImpersonation
	ImpersonationLevelDelegate
)

// Directory access masks.
const (
	DAccMaskFileListDirectory  uint32 = 0x00000001
	DAccMaskFileReadAttributes uint32 = 0x00000080
)

// File attributes.
const (
	FileAttrReadonly  uint32 = 0x00000001
	FileAttrHidden    uint32 = 0x00000002
	FileAttrDirectory uint32 = 0x00000010
)

// Share access.
const (
	FileShareRead  uint32 = 0x00000001
	FileShareWrite uint32 = 0x00000002
)

// Create dispositions and options used for directory opens.
const (
	FileOpen          uint32 = 0x00000001
	FileDirectoryFile uint32 = 0x00000001
)

// MS-FSCC 2.4 file information classes.
const (
	FileBothDirectoryInformation byte = 0x03
)

// Header is the fixed 64-byte header prepended to every SMB2 message.
// The on-the-wire layout is little-endian throughout: command at byte
// offset 12, message id at 24, tree id at 36, session id at 40.
type Header struct {
	CreditCharge uint16
	Status       uint32
	Command      uint16
	Credits      uint16
	Flags        uint32
	NextCommand  uint32
	MessageID    uint64
	Reserved     uint32
	TreeID       uint32
	SessionID    uint64
	Signature    [16]byte
}

func newHeader(command uint16) Header {
	return Header{
		CreditCharge: 1,
		Command:      command,
		Credits:      1,
	}
}

// Marshal serializes the header into its 64-byte wire form.
func (h *Header) Marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], ProtocolSmb2)
	binary.LittleEndian.PutUint16(buf[4:6], headerSize)
	binary.LittleEndian.PutUint16(buf[6:8], h.CreditCharge)
	binary.LittleEndian.PutUint32(buf[8:12], h.Status)
	binary.LittleEndian.PutUint16(buf[12:14], h.Command)
	binary.LittleEndian.PutUint16(buf[14:16], h.Credits)
	binary.LittleEndian.PutUint32(buf[16:20], h.Flags)
	binary.LittleEndian.PutUint32(buf[20:24], h.NextCommand)
	binary.LittleEndian.PutUint64(buf[24:32], h.MessageID)
	binary.LittleEndian.PutUint32(buf[32:36], h.Reserved)
	binary.LittleEndian.PutUint32(buf[36:40], h.TreeID)
	binary.LittleEndian.PutUint64(buf[40:48], h.SessionID)
	copy(buf[48:64], h.Signature[:])
	return buf
}
