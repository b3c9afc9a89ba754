// Package server exposes the proxy's encrypted-graph engine over a
// length-prefixed JSON framing on a plain TCP socket: the wire format
// a client and the proxy agree on regardless of what backend sits
// behind it.
package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/clique-labs/graphproxy/internal/cypher"
	graphproxyerrors "github.com/clique-labs/graphproxy/internal/errors"
	"github.com/clique-labs/graphproxy/internal/graph"
	"github.com/clique-labs/graphproxy/internal/identity"
	"github.com/clique-labs/graphproxy/internal/integrity"
)

// frameLengthBytes is the width of the big-endian length prefix in
// front of every JSON frame body.
const frameLengthBytes = 8

// Server accepts TCP connections and dispatches each frame it reads to
// the engine, one connection per goroutine.
type Server struct {
	addr          string
	engine        *graph.Engine
	maxFrameBytes uint64
	logger        *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New builds a Server bound to addr, dispatching decoded queries to
// engine. maxFrameBytes rejects a frame before its body is even read
// once the declared length exceeds it — the original engine had no
// such limit, which left it open to a single client exhausting memory
// with a bogus length prefix.
func New(addr string, engine *graph.Engine, maxFrameBytes uint64) *Server {
	return &Server{
		addr:          addr,
		engine:        engine,
		maxFrameBytes: maxFrameBytes,
		logger:        slog.Default().With("component", "server"),
	}
}

// ListenAndServe binds the listener and serves connections until ctx
// is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return graphproxyerrors.Internalf("failed to listen on %s: %v", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("listening", "addr", s.addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down listener")
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	logger := s.logger.With("remote", remote)
	logger.Info("connection opened")
	defer logger.Info("connection closed")

	for {
		body, err := readFrame(conn, s.maxFrameBytes)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("frame read failed", "error", err)
			}
			return
		}

		rows, err := s.engine.Execute(ctx, body)
		if err != nil {
			logger.Warn("query failed", "error", err)
			return
		}

		// uid and hash are internal bookkeeping the engine needs on
		// every round trip; a client only ever sees its own content.
		public := rows.StripInternal(identity.UIDKey, integrity.HashKey)
		if err := writeRowsFrame(conn, public); err != nil {
			logger.Error("failed to write response frame", "error", err)
			return
		}
	}
}

func readFrame(r io.Reader, maxFrameBytes uint64) ([]byte, error) {
	var lenBuf [frameLengthBytes]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint64(lenBuf[:])
	if maxFrameBytes > 0 && length > maxFrameBytes {
		return nil, graphproxyerrors.SerializationError(nil, fmt.Sprintf("frame length %d exceeds maximum of %d bytes", length, maxFrameBytes))
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func writeFrame(w io.Writer, body []byte) error {
	var lenBuf [frameLengthBytes]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func writeRowsFrame(w io.Writer, rows cypher.Rows) error {
	body, err := json.Marshal(rows)
	if err != nil {
		return graphproxyerrors.SerializationError(err, "failed to serialize rows")
	}
	return writeFrame(w, body)
}
