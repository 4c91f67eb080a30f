package e2e

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"chat-relay/domain"
	"chat-relay/runtime"
	"chat-relay/server"
)

const (
	envelopeTimeout = 5 * time.Second
	maxLineBytes    = 1 << 20
)

type BaseTCPSuite struct {
	suite.Suite
	Config Config

	addr   string
	cancel context.CancelFunc
}

// SetupSuite loads the environment configuration and, when RELAY_ADDR is
// unset, boots a relay in-process on an ephemeral port.
func (s *BaseTCPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr != "" {
		s.addr = s.Config.RelayAddr
		return
	}

	log := logs.GetLoggerFromString("ERROR")
	registry := runtime.NewRegistry()
	directory := runtime.NewDirectory()
	router := runtime.NewRouter(log, registry, directory, nil)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	relay := server.NewServer(log, listener, registry, directory, router,
		maxLineBytes, 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() { _ = relay.Run(ctx) }()

	s.addr = relay.Addr().String()
}

func (s *BaseTCPSuite) TearDownSuite() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Step prints a colorized header so scenario phases stand out in logs.
func (s *BaseTCPSuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Client is a line-protocol test client speaking newline-delimited envelopes.
type Client struct {
	suite *BaseTCPSuite
	t     *testing.T
	name  string
	conn  net.Conn
	sc    *bufio.Scanner
}

// Dial connects a named client to the relay under test.
func (s *BaseTCPSuite) Dial(t *testing.T, name string) *Client {
	conn, err := net.DialTimeout("tcp", s.addr, envelopeTimeout)
	s.Require().NoError(err, "Failed to connect to relay at "+s.addr)
	t.Cleanup(func() { _ = conn.Close() })

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Client{suite: s, t: t, name: name, conn: conn, sc: sc}
}

func (c *Client) Send(e domain.Envelope) {
	line, err := e.Encode()
	c.suite.Require().NoError(err)
	c.dump("SEND", line)
	_, err = c.conn.Write(append(line, '\n'))
	c.suite.Require().NoError(err)
}

func (c *Client) SendRaw(line string) {
	c.dump("SEND", []byte(line))
	_, err := c.conn.Write([]byte(line + "\n"))
	c.suite.Require().NoError(err)
}

// Read waits for the next envelope, failing the suite on timeout.
func (c *Client) Read() domain.Envelope {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(envelopeTimeout)))
	c.suite.Require().True(c.sc.Scan(),
		"%s expected an envelope, got %v", c.name, c.sc.Err())
	c.dump("RECV", c.sc.Bytes())
	e, err := domain.Decode(c.sc.Bytes())
	c.suite.Require().NoError(err)
	return e
}

// ReadType reads envelopes until one of the wanted type arrives, skipping
// presence noise from concurrently connecting clients.
func (c *Client) ReadType(want domain.Type) domain.Envelope {
	deadline := time.Now().Add(envelopeTimeout)
	for time.Now().Before(deadline) {
		e := c.Read()
		if e.Type == want {
			return e
		}
	}
	c.suite.Require().FailNowf("timeout", "%s never received %s", c.name, want)
	return domain.Envelope{}
}

// ExpectSilence asserts no envelope arrives within the window. The scanner
// is poisoned by the deadline, so call it last on a client.
func (c *Client) ExpectSilence(window time.Duration) {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(window)))
	if c.sc.Scan() {
		c.suite.Require().FailNowf("unexpected envelope",
			"%s received %s while expecting silence", c.name, c.sc.Text())
	}
}

// Login performs the handshake and consumes the three post-login pushes.
func (c *Client) Login(username string) {
	c.Send(domain.NewLogin(username))

	response := c.Read()
	c.suite.Require().Equal(domain.TypeLoginResponse, response.Type)
	c.suite.Require().True(response.Content.(domain.LoginResponseContent).Success,
		"%s login rejected", username)
	c.suite.Require().Equal(domain.TypeUserList, c.Read().Type)
	c.suite.Require().Equal(domain.TypeGroupList, c.Read().Type)
}

func (c *Client) dump(direction string, line []byte) {
	if !c.suite.Config.DebugJSON {
		return
	}
	msg := fmt.Sprintf("[%s] %s %s", c.name, direction, line)
	if c.suite.Config.Colours {
		if direction == "SEND" {
			msg = color.FgCyan.Render(msg)
		} else {
			msg = color.FgYellow.Render(msg)
		}
	}
	c.t.Log(msg)
}
