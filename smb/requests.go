package smb

import (
	"encoding/binary"

	"smbls/smb/encoder"
)

// request is any outbound message that can serialize itself into its
// full payload (SMB2 header plus command body). The stream length
// prefix is added by the transport when the message is sent.
type request interface {
	Marshal() []byte
}

// NegotiateReq requests an SMB 2.x dialect. SMB1 and SMB3 negotiation
// are out of scope, so no negotiate contexts are sent.
type NegotiateReq struct {
	Header
	SecurityMode uint16
	Capabilities uint32
	ClientGuid   [16]byte
	Dialects     []uint16
}

func (s *Session) newNegotiateReq() *NegotiateReq {
	req := &NegotiateReq{
		Header:       s.nextHeader(CommandNegotiate),
		SecurityMode: SecurityModeSigningEnabled,
		Dialects: []uint16{
			DialectSmb_2_0_2,
			DialectSmb_2_1,
		},
	}
	copy(req.ClientGuid[:], s.clientGuid)
	return req
}

func (r *NegotiateReq) Marshal() []byte {
	buf := r.Header.Marshal()
	body := make([]byte, 36)
	binary.LittleEndian.PutUint16(body[0:2], 36) // StructureSize
	binary.LittleEndian.PutUint16(body[2:4], uint16(len(r.Dialects)))
	binary.LittleEndian.PutUint16(body[4:6], r.SecurityMode)
	binary.LittleEndian.PutUint32(body[8:12], r.Capabilities)
	copy(body[12:28], r.ClientGuid[:])
	// Bytes 28-35 are ClientStartTime for 2.x dialects, always zero.
	buf = append(buf, body...)
	for _, d := range r.Dialects {
		buf = binary.LittleEndian.AppendUint16(buf, d)
	}
	return buf
}

// SessionSetupReq carries an authentication token. The same message
// shape is used for both rounds of the NTLM exchange.
type SessionSetupReq struct {
	Header
	SecurityMode byte
	SecurityBlob []byte
}

func (s *Session) newSessionSetupReq(token []byte) *SessionSetupReq {
	return &SessionSetupReq{
		Header:       s.nextHeader(CommandSessionSetup),
		SecurityMode: byte(SecurityModeSigningEnabled),
		SecurityBlob: token,
	}
}

func (r *SessionSetupReq) Marshal() []byte {
	buf := r.Header.Marshal()
	body := make([]byte, 24)
	binary.LittleEndian.PutUint16(body[0:2], 25) // StructureSize
	body[3] = r.SecurityMode
	// SecurityBufferOffset: header (64) + fixed body (24).
	binary.LittleEndian.PutUint16(body[12:14], 88)
	binary.LittleEndian.PutUint16(body[14:16], uint16(len(r.SecurityBlob)))
	buf = append(buf, body...)
	return append(buf, r.SecurityBlob...)
}

// TreeConnectReq connects to a share by its UNC path.
type TreeConnectReq struct {
	Header
	Path []byte // UTF-16LE UNC path
}

func (s *Session) newTreeConnectReq(share string) *TreeConnectReq {
	path := "\\\\" + s.options.Host + "\\" + share
	return &TreeConnectReq{
		Header: s.nextHeader(CommandTreeConnect),
		Path:   encoder.ToUnicode(path),
	}
}

func (r *TreeConnectReq) Marshal() []byte {
	buf := r.Header.Marshal()
	body := make([]byte, 8)
	binary.LittleEndian.PutUint16(body[0:2], 9) // StructureSize
	binary.LittleEndian.PutUint16(body[4:6], 72)
	binary.LittleEndian.PutUint16(body[6:8], uint16(len(r.Path)))
	buf = append(buf, body...)
	return append(buf, r.Path...)
}

// CreateReq opens a file or directory relative to the connected tree.
type CreateReq struct {
	Header
	RequestedOplockLevel byte
	ImpersonationLevel   uint32
	DesiredAccess        uint32
	FileAttributes       uint32
	ShareAccess          uint32
	CreateDisposition    uint32
	CreateOptions        uint32
	Name                 []byte // UTF-16LE relative path
}

// newCreateDirReq opens an existing directory for listing.
func (s *Session) newCreateDirReq(name string) *CreateReq {
	return &CreateReq{
		Header:             s.nextHeader(CommandCreate),
		ImpersonationLevel: ImpersonationLevelImpersonation,
		DesiredAccess:      DAccMaskFileListDirectory | DAccMaskFileReadAttributes,
		FileAttributes:     FileAttrDirectory,
		ShareAccess:        FileShareRead | FileShareWrite,
		CreateDisposition:  FileOpen,
		CreateOptions:      FileDirectoryFile,
		Name:               encoder.ToUnicode(name),
	}
}

func (r *CreateReq) Marshal() []byte {
	buf := r.Header.Marshal()
	body := make([]byte, 56)
	binary.LittleEndian.PutUint16(body[0:2], 57) // StructureSize, fixed regardless of buffer
	body[3] = r.RequestedOplockLevel
	binary.LittleEndian.PutUint32(body[4:8], r.ImpersonationLevel)
	binary.LittleEndian.PutUint32(body[24:28], r.DesiredAccess)
	binary.LittleEndian.PutUint32(body[28:32], r.FileAttributes)
	binary.LittleEndian.PutUint32(body[32:36], r.ShareAccess)
	binary.LittleEndian.PutUint32(body[36:40], r.CreateDisposition)
	binary.LittleEndian.PutUint32(body[40:44], r.CreateOptions)
	binary.LittleEndian.PutUint16(body[44:46], 120) // NameOffset: header + fixed body
	binary.LittleEndian.PutUint16(body[46:48], uint16(len(r.Name)))
	buf = append(buf, body...)
	if len(r.Name) == 0 {
		// The wire format forbids a zero-length buffer; the root of the
		// share is represented by a single filler byte with NameLength 0.
		return append(buf, 0)
	}
	return append(buf, r.Name...)
}

// CloseReq releases an open file id.
type CloseReq struct {
	Header
	FileId [16]byte
}

func (s *Session) newCloseReq(fileId [16]byte) *CloseReq {
	return &CloseReq{
		Header: s.nextHeader(CommandClose),
		FileId: fileId,
	}
}

func (r *CloseReq) Marshal() []byte {
	buf := r.Header.Marshal()
	body := make([]byte, 24)
	binary.LittleEndian.PutUint16(body[0:2], 24) // StructureSize
	copy(body[8:24], r.FileId[:])
	return append(buf, body...)
}

// QueryDirectoryReq asks for directory entries matching a pattern.
type QueryDirectoryReq struct {
	Header
	FileInformationClass byte
	FileId               [16]byte
	OutputBufferLength   uint32
	Pattern              []byte // UTF-16LE search pattern
}

func (s *Session) newQueryDirectoryReq(fileId [16]byte, pattern string) *QueryDirectoryReq {
	if pattern == "" {
		// An empty pattern would require a zero-length buffer which the
		// fixed structure size of 33 does not permit; the wildcard is
		// equivalent.
		pattern = "*"
	}
	return &QueryDirectoryReq{
		Header:               s.nextHeader(CommandQueryDirectory),
		FileInformationClass: FileBothDirectoryInformation,
		FileId:               fileId,
		OutputBufferLength:   65536,
		Pattern:              encoder.ToUnicode(pattern),
	}
}

func (r *QueryDirectoryReq) Marshal() []byte {
	buf := r.Header.Marshal()
	body := make([]byte, 32)
	binary.LittleEndian.PutUint16(body[0:2], 33) // StructureSize
	body[2] = r.FileInformationClass
	copy(body[8:24], r.FileId[:])
	binary.LittleEndian.PutUint16(body[24:26], 96) // FileNameOffset: header + fixed body
	binary.LittleEndian.PutUint16(body[26:28], uint16(len(r.Pattern)))
	binary.LittleEndian.PutUint32(body[28:32], r.OutputBufferLength)
	buf = append(buf, body...)
	return append(buf, r.Pattern...)
}
