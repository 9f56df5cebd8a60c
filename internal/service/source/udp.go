package source

import (
	"bytes"
	"io"
	"net"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"birdcam/internal/logger"
	"birdcam/internal/model"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

const (
	datagramSize = 2048
	// maxFrameSize bounds a sender buffer that never sees a JPEG footer.
	maxFrameSize = 8 << 20
)

// UDPSource reassembles JPEG frames that cameras send as a run of UDP datagrams: a
// datagram starting with the JPEG SOI marker opens a frame and one ending with the
// EOI marker completes it. Each sender address is buffered separately.
type UDPSource struct {
	conn    *net.UDPConn
	clock   clock.Clock
	buffers map[string]*bytes.Buffer
	packet  []byte
	seq     uint64
	logger  *logger.Logger

	closeOnce sync.Once
}

// ListenUDP starts listening on addr, e.g. ":9000".
func ListenUDP(addr string, logger *logger.Logger) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve UDP address %s", addr)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on UDP %s", addr)
	}

	logger.Info("📡 UDP camera source listening on %s", conn.LocalAddr())
	return &UDPSource{
		conn:    conn,
		clock:   clock.New(),
		buffers: make(map[string]*bytes.Buffer),
		packet:  make([]byte, datagramSize),
		logger:  logger,
	}, nil
}

// Addr returns the bound local address.
func (s *UDPSource) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// NextFrame blocks until a complete JPEG frame has been received and decoded. Frames
// that fail to decode are skipped with a warning. Returns io.EOF after Close.
func (s *UDPSource) NextFrame() (model.Frame, error) {
	for {
		n, remote, err := s.conn.ReadFromUDP(s.packet)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return model.Frame{}, io.EOF
			}
			return model.Frame{}, errors.Wrap(err, "failed to read UDP packet")
		}

		frame, ok := s.assemble(remote.String(), s.packet[:n])
		if !ok {
			continue
		}

		img, err := imaging.Decode(bytes.NewReader(frame))
		if err != nil {
			s.logger.Warning("Dropping undecodable frame from %s: %v", remote, err)
			continue
		}
		s.seq++
		return model.Frame{Seq: s.seq, Timestamp: s.clock.Now(), Image: img}, nil
	}
}

// assemble appends data to the sender's buffer and returns the completed frame, if any.
func (s *UDPSource) assemble(sender string, data []byte) ([]byte, bool) {
	buf, ok := s.buffers[sender]
	if !ok {
		buf = new(bytes.Buffer)
		s.buffers[sender] = buf
	}

	if bytes.HasPrefix(data, jpegHeader) {
		buf.Reset()
	} else if buf.Len() == 0 {
		// Tail of a frame whose start we missed.
		return nil, false
	}
	buf.Write(data)

	if buf.Len() > maxFrameSize {
		s.logger.Warning("Discarding oversized frame from %s (%d bytes)", sender, buf.Len())
		buf.Reset()
		return nil, false
	}

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil, false
	}
	frame := make([]byte, buf.Len())
	copy(frame, buf.Bytes())
	buf.Reset()
	return frame, true
}

// Close stops listening. A blocked NextFrame returns io.EOF.
func (s *UDPSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
