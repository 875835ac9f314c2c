// Package zrctransport is the QUIC bootstrap for the session data plane
// (spec.md §4.7): a single UDP endpoint secured by a self-signed,
// connection-pinned TLS certificate whose DER bytes are shipped to the
// controller inside a signed+sealed session-init response, so no
// certificate authority is needed and no MITM is possible without first
// breaking envelope integrity.
package zrctransport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// channelHelloVersion is the only supported channel-hello version
// (spec.md §4.7: "2-byte hello [version=1][channel_id]").
const channelHelloVersion = 0x01

// ALPN is the protocol negotiated on every ZRC QUIC connection.
const ALPN = "zrc/1"

const (
	DefaultMaxIdleTimeout     = 60 * time.Second
	DefaultKeepAlivePeriod    = 30 * time.Second
	DefaultMaxIncomingStreams = 64
)

// Listener accepts incoming QUIC connections on a device's bootstrap
// endpoint.
type Listener struct {
	ql *quic.Listener
}

// Listen binds a QUIC listener using the given self-signed leaf
// certificate (see certutil.GenerateLeaf).
func Listen(addr string, cert tls.Certificate) (*Listener, error) {
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}
	quicConfig := &quic.Config{
		MaxIdleTimeout:        DefaultMaxIdleTimeout,
		KeepAlivePeriod:       DefaultKeepAlivePeriod,
		MaxIncomingStreams:    DefaultMaxIncomingStreams,
		MaxIncomingUniStreams: DefaultMaxIncomingStreams,
	}
	ql, err := quic.ListenAddr(addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("zrctransport: listen: %w", err)
	}
	return &Listener{ql: ql}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ql.Addr() }

// Accept waits for the next incoming connection.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	conn, err := l.ql.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn}, nil
}

// Close shuts the listener down.
func (l *Listener) Close() error { return l.ql.Close() }

// Dial connects to a device's bootstrap endpoint, pinning the connection
// to exactly the certificate DER the controller already has (delivered
// out-of-band inside a sealed session-init response) rather than trusting
// any certificate authority.
func Dial(ctx context.Context, addr string, pinnedCertDER []byte, timeout time.Duration) (*Conn, error) {
	tlsConfig := &tls.Config{
		NextProtos:         []string{ALPN},
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true, // verification is done explicitly below, by DER pinning
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return VerifyPinnedCert(rawCerts, pinnedCertDER)
		},
	}
	quicConfig := &quic.Config{
		MaxIdleTimeout:     DefaultMaxIdleTimeout,
		KeepAlivePeriod:    DefaultKeepAlivePeriod,
		MaxIncomingStreams: DefaultMaxIncomingStreams,
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("zrctransport: dial: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// Conn wraps one QUIC connection, offering the channel-oriented streams
// spec.md §4.7 defines on top of raw QUIC streams.
type Conn struct {
	conn   quic.Connection
	mu     sync.Mutex
	closed bool
}

// OpenChannelStream opens a new stream and writes the 2-byte channel hello
// (spec.md §6: 0x01 then channel id) before returning it.
func (c *Conn) OpenChannelStream(ctx context.Context, channelID byte, unidirectional bool) (*ChannelStream, error) {
	var cs *ChannelStream
	if unidirectional {
		us, err := c.conn.OpenUniStreamSync(ctx)
		if err != nil {
			return nil, fmt.Errorf("zrctransport: open uni stream: %w", err)
		}
		cs = &ChannelStream{writer: us, channelID: channelID}
	} else {
		s, err := c.conn.OpenStreamSync(ctx)
		if err != nil {
			return nil, fmt.Errorf("zrctransport: open stream: %w", err)
		}
		cs = &ChannelStream{stream: s, reader: s, writer: s, channelID: channelID}
	}
	if _, err := cs.writer.Write([]byte{channelHelloVersion, channelID}); err != nil {
		return nil, fmt.Errorf("zrctransport: send channel hello: %w", err)
	}
	return cs, nil
}

// AcceptChannelStream accepts the next stream and reads its channel hello,
// returning the channel id the peer announced.
func (c *Conn) AcceptChannelStream(ctx context.Context) (*ChannelStream, byte, error) {
	s, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("zrctransport: accept stream: %w", err)
	}
	hello := make([]byte, 2)
	if _, err := readFull(s, hello); err != nil {
		return nil, 0, fmt.Errorf("zrctransport: read channel hello: %w", err)
	}
	if hello[0] != channelHelloVersion {
		return nil, 0, fmt.Errorf("zrctransport: unsupported channel hello version %d", hello[0])
	}
	return &ChannelStream{stream: s, reader: s, writer: s, channelID: hello[1]}, hello[1], nil
}

// AcceptUniChannelStream accepts the next unidirectional stream (used for
// the device->operator Frames channel) and reads its channel hello.
func (c *Conn) AcceptUniChannelStream(ctx context.Context) (*ChannelStream, byte, error) {
	s, err := c.conn.AcceptUniStream(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("zrctransport: accept uni stream: %w", err)
	}
	hello := make([]byte, 2)
	if _, err := readFull(s, hello); err != nil {
		return nil, 0, fmt.Errorf("zrctransport: read channel hello: %w", err)
	}
	if hello[0] != channelHelloVersion {
		return nil, 0, fmt.Errorf("zrctransport: unsupported channel hello version %d", hello[0])
	}
	return &ChannelStream{reader: s, channelID: hello[1]}, hello[1], nil
}

// Close terminates the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.CloseWithError(0, "session closed")
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
