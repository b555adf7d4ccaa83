// Package irc implements the IRC channel using the girc library.
package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"

	"github.com/olasquare/olasquare/internal/config"
	"github.com/olasquare/olasquare/internal/domain"
	"github.com/olasquare/olasquare/internal/logging"
	"github.com/olasquare/olasquare/internal/version"
)

// maxLineBytes keeps PRIVMSG lines under the 512-byte protocol limit once
// the prefix and target are added.
const maxLineBytes = 400

// Channel implements domain.Channel for IRC.
type Channel struct {
	cfg    config.IRCConfig
	client *girc.Client
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string
}

// New creates an IRC channel from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg: cfg,
		log: log.Sub("irc"),
	}
}

func (c *Channel) ID() string { return "irc" }

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "irc",
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		LastError: c.lastErr,
	}
}

func (c *Channel) port() int {
	switch {
	case c.cfg.Port != 0:
		return c.cfg.Port
	case c.cfg.UseTLS:
		return 6697
	default:
		return 6667
	}
}

func (c *Channel) gircConfig() girc.Config {
	cfg := girc.Config{
		Server:  c.cfg.Server,
		Port:    c.port(),
		Nick:    c.cfg.Nick,
		User:    c.cfg.Nick,
		Name:    "Olasquare assistant",
		SSL:     c.cfg.UseTLS,
		Version: "olasquare/" + version.Version,
	}
	if c.cfg.UseTLS {
		cfg.TLSConfig = &tls.Config{ServerName: c.cfg.Server}
	}
	if c.cfg.SASL && c.cfg.Password != "" {
		cfg.SASL = &girc.SASLPlain{User: c.cfg.Nick, Pass: c.cfg.Password}
	} else if c.cfg.Password != "" {
		cfg.ServerPass = c.cfg.Password
	}
	return cfg
}

// Start connects to the IRC server and blocks until the connection ends or
// ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	client := girc.New(c.gircConfig())
	client.Handlers.Add(girc.CONNECTED, c.onConnected)
	client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	client.Handlers.Add(girc.DISCONNECTED, c.onDisconnected)

	c.mu.Lock()
	c.client = client
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().
		Str("server", c.cfg.Server).
		Int("port", c.port()).
		Str("nick", c.cfg.Nick).
		Strs("channels", c.cfg.Channels).
		Bool("tls", c.cfg.UseTLS).
		Msg("connecting to IRC")

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		client.Close()
		<-errCh
		err = ctx.Err()
	}

	c.mu.Lock()
	c.running = false
	if err != nil && !errors.Is(err, context.Canceled) {
		c.lastErr = err.Error()
	}
	c.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("irc connect: %w", err)
	}
	return err
}

// Stop sends QUIT if connected.
func (c *Channel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		c.log.Info().Msg("disconnecting from IRC")
		c.client.Quit("shutting down")
	}
	c.running = false
	return nil
}

// Send delivers a message to an IRC channel or user, one PRIVMSG per line.
func (c *Channel) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil || !client.IsConnected() {
		return fmt.Errorf("irc: not connected")
	}
	if msg.To == "" {
		return fmt.Errorf("irc: no target specified")
	}

	lines := splitMessage(msg.Body, maxLineBytes)
	for _, line := range lines {
		client.Cmd.Message(msg.To, line)
	}
	c.log.Debug().Str("to", msg.To).Int("lines", len(lines)).Msg("sent IRC message")
	return nil
}

func (c *Channel) onConnected(client *girc.Client, _ girc.Event) {
	c.log.Info().Str("nick", client.GetNick()).Msg("connected to IRC")
	for _, ch := range c.cfg.Channels {
		c.log.Info().Str("channel", ch).Msg("joining channel")
		client.Cmd.Join(ch)
	}
}

func (c *Channel) onDisconnected(_ *girc.Client, _ girc.Event) {
	c.log.Warn().Msg("disconnected from IRC")
}

func (c *Channel) onPrivmsg(client *girc.Client, e girc.Event) {
	msg, ok := c.inbound(e, client.GetNick())
	if !ok {
		return
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}

// inbound turns a PRIVMSG into an InboundMessage, or reports false when the
// bot should stay quiet: own echoes, non-owners when an owner is set, and
// channel lines that do not mention the bot.
func (c *Channel) inbound(e girc.Event, self string) (domain.InboundMessage, bool) {
	if e.Source == nil || len(e.Params) == 0 {
		return domain.InboundMessage{}, false
	}
	from := e.Source.Name
	if strings.EqualFold(from, self) {
		return domain.InboundMessage{}, false
	}
	if c.cfg.Owner != "" && !strings.EqualFold(from, c.cfg.Owner) {
		c.log.Debug().Str("nick", from).Str("owner", c.cfg.Owner).Msg("ignoring message from non-owner")
		return domain.InboundMessage{}, false
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}

	msg := domain.InboundMessage{
		ID:        uuid.New().String(),
		ChannelID: "irc",
		From:      from,
		FromName:  from,
		Timestamp: time.Now(),
	}

	if e.IsFromChannel() {
		text, mentioned := stripMention(body, self)
		if !mentioned {
			return domain.InboundMessage{}, false
		}
		msg.ChatID = e.Params[0]
		msg.ChatType = domain.ChatTypeGroup
		body = text
	} else {
		msg.ChatID = from
		msg.ChatType = domain.ChatTypeDM
	}

	msg.Body = strings.TrimSpace(body)
	if msg.Body == "" {
		return domain.InboundMessage{}, false
	}
	return msg, true
}

// stripMention reports whether body mentions nick and, when the line is
// addressed as "nick: text" or "nick, text", returns the text without the
// address prefix.
func stripMention(body, nick string) (string, bool) {
	if nick == "" {
		return body, false
	}
	lower := strings.ToLower(body)
	lnick := strings.ToLower(nick)

	if strings.HasPrefix(lower, lnick) {
		rest := body[len(nick):]
		if r, size := utf8.DecodeRuneInString(rest); r == ':' || r == ',' {
			return strings.TrimSpace(rest[size:]), true
		}
	}

	for i := 0; ; {
		j := strings.Index(lower[i:], lnick)
		if j < 0 {
			return body, false
		}
		start, end := i+j, i+j+len(lnick)
		if isNickBoundary(lower, start-1) && isNickBoundary(lower, end) {
			return body, true
		}
		i = end
	}
}

// isNickBoundary reports whether the byte at i is outside s or a character
// that cannot be part of a nick.
func isNickBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_-[]\\`^{}|", r))
}

// splitMessage breaks text into PRIVMSG-sized lines. Each input line becomes
// at least one output line; blank lines are dropped and long lines are cut
// at rune boundaries so no chunk exceeds maxLen bytes.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r ")
		if strings.TrimSpace(line) == "" {
			continue
		}
		for len(line) > maxLen {
			cut := maxLen
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if sp := strings.LastIndexByte(line[:cut], ' '); sp > maxLen/2 {
				cut = sp
			}
			chunks = append(chunks, line[:cut])
			line = strings.TrimLeft(line[cut:], " ")
		}
		if line != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks
}
