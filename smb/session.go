package smb

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrOutstandingRequest is returned when a second request is attempted
// while one is already in flight. Responses are correlated with
// requests positionally, so a session never has more than one request
// outstanding; this guard makes the invariant fail fast instead of
// corrupting correlation.
var ErrOutstandingRequest = errors.New("a request is already outstanding on this session")

// ErrNotConnected is returned when an operation requires a connected
// and authenticated session.
var ErrNotConnected = errors.New("session is not connected")

// Options configures a session. Host and Share are required; the
// remaining fields have the defaults applied by NewSession.
type Options struct {
	Host        string
	Port        int    // default 445
	Share       string
	Path        string // only used by the one-shot Enumerate
	Domain      string // default "WORKGROUP"
	User        string // default "guest"
	Password    string
	Hash        []byte // NT hash, used instead of Password when set
	NullSession bool
	DialTimeout time.Duration
	Initiator   Initiator // default NTLMInitiator over the fields above
}

func validateOptions(opt *Options) error {
	if opt.Host == "" {
		return fmt.Errorf("missing required option: Host")
	}
	if opt.Share == "" {
		return fmt.Errorf("missing required option: Share")
	}
	if opt.Port == 0 {
		opt.Port = 445
	}
	if opt.Port < 1 || opt.Port > 65535 {
		return fmt.Errorf("invalid value for option: Port")
	}
	if opt.User == "" && !opt.NullSession {
		opt.User = "guest"
	}
	if opt.Domain == "" {
		opt.Domain = "WORKGROUP"
	}
	if opt.Initiator == nil {
		opt.Initiator = &NTLMInitiator{
			User:        opt.User,
			Password:    opt.Password,
			Hash:        opt.Hash,
			Domain:      opt.Domain,
			Workstation: opt.Host,
			NullSession: opt.NullSession,
		}
	}
	return nil
}

// Session is a single SMB2 connection to one share. It is exclusively
// owned by its caller: the message id counter, session id, tree id and
// receive buffer are all per-session state, and at most one request is
// outstanding at any time. Independent sessions may run concurrently.
type Session struct {
	IsAuthenticated bool

	options    Options
	clientGuid []byte

	conn      net.Conn
	fr        *frameReader
	messageID uint64
	sessionID uint64
	treeID    uint32
	connected bool

	mu       sync.Mutex
	inflight bool
}

// NewSession validates the options and returns an unconnected session.
// No network activity happens until Connect.
func NewSession(options Options) (*Session, error) {
	if err := validateOptions(&options); err != nil {
		log.Errorln(err)
		return nil, err
	}
	s := &Session{
		options:    options,
		clientGuid: make([]byte, 16),
	}
	if _, err := rand.Read(s.clientGuid); err != nil {
		return nil, err
	}
	return s, nil
}

// nextHeader assembles a header carrying the current session-wide
// state. The message id counter advances in sendrecv once the request
// is admitted, so a request the in-flight guard rejects does not burn
// an id; servers validate the id sequence.
func (s *Session) nextHeader(command uint16) Header {
	hdr := newHeader(command)
	hdr.MessageID = s.messageID
	hdr.TreeID = s.treeID
	hdr.SessionID = s.sessionID
	return hdr
}

// sendrecv writes one framed request and blocks until its response
// arrives.
func (s *Session) sendrecv(req request) ([]byte, error) {
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return nil, ErrOutstandingRequest
	}
	s.inflight = true
	s.messageID++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
	}()

	if s.conn == nil {
		return nil, ErrNotConnected
	}
	if _, err := s.conn.Write(frame(req.Marshal())); err != nil {
		return nil, fmt.Errorf("transport write: %w", err)
	}
	return s.fr.Next()
}

// Connect dials the server and drives negotiate, the two-round NTLM
// session setup, and tree connect, one request per step. Any
// unexpected status aborts the sequence and releases the transport;
// there is no automatic retry, but Connect may be invoked again after
// Close to start over from scratch.
func (s *Session) Connect() error {
	if s.connected {
		return nil
	}
	addr := net.JoinHostPort(s.options.Host, strconv.Itoa(s.options.Port))
	conn, err := net.DialTimeout("tcp", addr, s.options.DialTimeout)
	if err != nil {
		log.Errorln(err)
		return err
	}
	s.conn = conn
	s.fr = newFrameReader(conn)
	s.messageID = 0
	s.sessionID = 0
	s.treeID = 0

	if err := s.handshake(); err != nil {
		s.Close()
		return err
	}
	s.connected = true
	return nil
}

func (s *Session) handshake() error {
	if err := s.negotiateProtocol(); err != nil {
		log.Errorln(err)
		return err
	}
	if err := s.sessionSetup(); err != nil {
		log.Errorln(err)
		return err
	}
	if err := s.treeConnect(); err != nil {
		log.Errorln(err)
		return err
	}
	return nil
}

func (s *Session) negotiateProtocol() error {
	log.Debugln("Sending Negotiate request")
	buf, err := s.sendrecv(s.newNegotiateReq())
	if err != nil {
		return err
	}
	if err := checkStatus(buf, StatusOk); err != nil {
		return fmt.Errorf("negotiate failed: %w", err)
	}
	return nil
}

func (s *Session) sessionSetup() error {
	token, err := s.options.Initiator.InitSecContext()
	if err != nil {
		return err
	}

	log.Debugln("Sending SessionSetup request (round 1)")
	buf, err := s.sendrecv(s.newSessionSetupReq(token))
	if err != nil {
		return err
	}
	// The first round must come back as MORE_PROCESSING_REQUIRED: the
	// server has assigned a session id and attached its challenge.
	if err := checkStatus(buf, StatusMoreProcessingRequired); err != nil {
		return fmt.Errorf("session setup failed: %w", err)
	}
	res := sessionSetupResDecoder(buf)
	s.sessionID = res.SessionID()

	resp, err := s.options.Initiator.AcceptSecContext(res.SecurityBuffer())
	if err != nil {
		return err
	}

	log.Debugln("Sending SessionSetup request (round 2)")
	buf, err = s.sendrecv(s.newSessionSetupReq(resp))
	if err != nil {
		return err
	}
	if err := checkStatus(buf, StatusOk); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	s.IsAuthenticated = true
	return nil
}

func (s *Session) treeConnect() error {
	log.Debugf("Sending TreeConnect request [%s]\n", s.options.Share)
	buf, err := s.sendrecv(s.newTreeConnectReq(s.options.Share))
	if err != nil {
		return err
	}
	if err := checkStatus(buf, StatusOk); err != nil {
		return fmt.Errorf("tree connect to %q failed: %w", s.options.Share, err)
	}
	s.treeID = treeConnectResDecoder(buf).TreeID()
	return nil
}

// Enumerate lists the directory at path relative to the connected
// share. Forward and back slashes are interchangeable; leading and
// trailing separators are ignored; an empty path lists the share root.
// The "." and ".." pseudo-entries are filtered out and the remaining
// entries are returned in server order.
func (s *Session) Enumerate(path string) (files []SharedFile, err error) {
	if !s.connected {
		return nil, ErrNotConnected
	}
	name := normalizePath(path)

	log.Debugf("Sending Create request [%s]\n", name)
	buf, err := s.sendrecv(s.newCreateDirReq(name))
	if err != nil {
		return nil, err
	}
	if err := checkStatus(buf, StatusOk); err != nil {
		return nil, fmt.Errorf("open of %q failed: %w", name, err)
	}
	fileId := createResDecoder(buf).FileId()

	// The open directory is released on every exit path, including a
	// failed query loop. A close failure is logged rather than allowed
	// to mask the primary error.
	defer func() {
		log.Debugf("Sending Close request for file id [%x]\n", fileId)
		cbuf, cerr := s.sendrecv(s.newCloseReq(fileId))
		if cerr == nil {
			cerr = checkStatus(cbuf, StatusOk)
		}
		if cerr != nil {
			log.Errorf("failed to close directory handle: %v\n", cerr)
		}
	}()

	for {
		log.Debugln("Sending QueryDirectory request")
		qbuf, err := s.sendrecv(s.newQueryDirectoryReq(fileId, "*"))
		if err != nil {
			return nil, err
		}
		status := responseStatus(qbuf)
		if status == StatusNoMoreFiles {
			break
		}
		if status != StatusOk {
			return nil, fmt.Errorf("query directory failed: %w",
				&StatusError{Status: status, Expected: StatusOk})
		}
		more, err := decodeDirectoryInfo(queryDirectoryResDecoder(qbuf).OutputBuffer())
		if err != nil {
			return nil, err
		}
		files = append(files, more...)
	}

	out := make([]SharedFile, 0, len(files))
	for _, f := range files {
		if f.Name == "." || f.Name == ".." {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// Close tears down the transport. It is idempotent, does not wait for
// an in-flight operation to settle, and leaves the session ready for a
// fresh Connect.
func (s *Session) Close() {
	if s.conn != nil {
		log.Debugln("Closing TCP connection")
		s.conn.Close()
		s.conn = nil
	}
	s.fr = nil
	s.connected = false
	s.IsAuthenticated = false
	s.sessionID = 0
	s.treeID = 0
}

// normalizePath collapses separators so that "a/b/", "\a\b" and "a/b"
// all produce the same backslash-joined relative path.
func normalizePath(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	return strings.Join(parts, "\\")
}

// Enumerate is the one-shot convenience call: connect with the given
// options, list Options.Path on Options.Share, and close the session.
func Enumerate(options Options) ([]SharedFile, error) {
	s, err := NewSession(options)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(); err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Enumerate(options.Path)
}
