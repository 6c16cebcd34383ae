package cache

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

type replyKind byte

const (
	kindSimple  replyKind = '+'
	kindError   replyKind = '-'
	kindInteger replyKind = ':'
	kindBulk    replyKind = '$'
	kindNil     replyKind = '_'
)

type reply struct {
	kind replyKind
	data []byte
}

func (r reply) is(kind replyKind, text string) bool {
	return r.kind == kind && string(r.data) == text
}

// ServerError is an error reply returned by the server, e.g. WRONGPASS.
type ServerError string

func (e ServerError) Error() string { return "valkey: " + string(e) }

// respConn speaks the subset of RESP2 the provider needs over one connection.
type respConn struct {
	conn         net.Conn
	r            *bufio.Reader
	w            *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newRESPConn(conn net.Conn, readTimeout, writeTimeout time.Duration) *respConn {
	return &respConn{
		conn:         conn,
		r:            bufio.NewReader(conn),
		w:            bufio.NewWriter(conn),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// do sends one command and reads its reply.
func (c *respConn) do(args ...[]byte) (reply, error) {
	if err := c.send(args); err != nil {
		return reply{}, err
	}
	return c.receive()
}

func (c *respConn) send(args [][]byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(len(args)), 10)
	buf = append(buf, '\r', '\n')
	for _, arg := range args {
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(arg)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, arg...)
		buf = append(buf, '\r', '\n')
	}
	if _, err := c.w.Write(buf); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *respConn) receive() (reply, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return reply{}, err
	}
	prefix, err := c.r.ReadByte()
	if err != nil {
		return reply{}, err
	}
	line, err := c.line()
	if err != nil {
		return reply{}, err
	}

	switch replyKind(prefix) {
	case kindSimple, kindInteger:
		return reply{kind: replyKind(prefix), data: line}, nil
	case kindError:
		return reply{}, ServerError(line)
	case kindBulk:
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return reply{}, fmt.Errorf("valkey: bad bulk length %q", line)
		}
		if size < 0 {
			return reply{kind: kindNil}, nil
		}
		// payload plus trailing CRLF
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(c.r, buf); err != nil {
			return reply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return reply{}, errors.New("valkey: invalid bulk termination")
		}
		return reply{kind: kindBulk, data: buf[:size]}, nil
	default:
		return reply{}, fmt.Errorf("valkey: unexpected reply prefix %q", prefix)
	}
}

func (c *respConn) line() ([]byte, error) {
	line, err := c.r.ReadSlice('\n')
	if err != nil {
		return nil, err
	}
	n := len(line) - 1
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	return append([]byte(nil), line[:n]...), nil
}

func (c *respConn) close() {
	_ = c.conn.Close()
}
