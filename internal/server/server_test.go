package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clique-labs/graphproxy/internal/cipher"
	"github.com/clique-labs/graphproxy/internal/cypher"
	"github.com/clique-labs/graphproxy/internal/graph"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("hello")))

	body, err := readFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [frameLengthBytes]byte
	binary.BigEndian.PutUint64(lenBuf[:], 1<<20)
	buf.Write(lenBuf[:])
	// No body written: a correct implementation must reject based on
	// the declared length alone, before trying to read it.

	_, err := readFrame(&buf, 1024)
	assert.Error(t, err)
}

func TestReadFrameAllowsUnlimitedWhenMaxIsZero(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("no limit configured")))

	body, err := readFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "no limit configured", string(body))
}

type failingBackend struct{}

func (failingBackend) ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error) {
	return nil, errors.New("backend unreachable")
}
func (failingBackend) HealthCheck(ctx context.Context) error { return nil }
func (failingBackend) Close(ctx context.Context) error       { return nil }

// A client never sees an error envelope: any orchestration failure,
// fatal or not, terminates the connection with diagnostic logging only.
func TestHandleConnClosesSilentlyOnOrchestrationError(t *testing.T) {
	c, err := cipher.New([16]byte{})
	require.NoError(t, err)
	engine := graph.NewEngine(failingBackend{}, graph.NewEncryptor(c))
	srv := New("127.0.0.1:0", engine, 0)

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	go srv.handleConn(context.Background(), serverConn)

	q := cypher.NewBuilder().CreateOp().Node(cypher.NewNode("n", []string{"Person"}, nil)).Build()
	body, err := q.Serialize()
	require.NoError(t, err)
	require.NoError(t, writeFrame(clientConn, body))

	_, err = readFrame(clientConn, 0)
	assert.Error(t, err)
}

