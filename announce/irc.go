// Package announce posts finished runs to an IRC channel.
package announce

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	goirc "github.com/fluffle/goirc/client"
	"golang.org/x/oauth2"

	"github.com/gweber/quotico-sub000/evolve"
)

const (
	minRetry      = 1
	maxRetry      = 60
	backoffFactor = 3

	queueSize = 100
)

// IRC announces every finished run as one channel message. It implements
// evolve.Observer; messages queue until Run has a live connection.
type IRC struct {
	Server  string
	Channel string
	Nick    string
	Tokens  oauth2.TokenSource

	lines chan string
}

func NewIRC(server, channel, nick string, tokens oauth2.TokenSource) *IRC {
	if !strings.HasPrefix(channel, "#") {
		channel = "#" + channel
	}
	return &IRC{
		Server:  server,
		Channel: channel,
		Nick:    nick,
		Tokens:  tokens,
		lines:   make(chan string, queueSize),
	}
}

func (a *IRC) Generation(evolve.Progress) {}

func (a *IRC) Finished(rec *evolve.StrategyRecord) {
	line := Format(rec)
	select {
	case a.lines <- line:
	default:
		log.Printf("warning: announce queue full, dropping %q", line)
	}
}

// Format renders rec as a single chat line.
func Format(rec *evolve.StrategyRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", rec.Market, rec.Status)
	if rec.Provenance.Stage != "" {
		fmt.Fprintf(&b, " stage=%s", rec.Provenance.Stage)
	}
	if v := rec.Validation; v != nil {
		fmt.Fprintf(&b, " roi=%.1f%% bets=%d", v.ROI*100, v.Bets)
	}
	if s := rec.Stress; s != nil && s.MonteCarlo.Sims > 0 {
		fmt.Fprintf(&b, " ruin=%.1f%%", s.MonteCarlo.RuinProb*100)
	}
	if rec.Deployable {
		b.WriteString(" deployable")
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, " (%s)", rec.Error)
	}
	fmt.Fprintf(&b, " run=%s", rec.RunID)
	return b.String()
}

// Run keeps a connection up until ctx is done, reconnecting with backoff.
func (a *IRC) Run(ctx context.Context) {
	delay := minRetry
	for {
		err := a.session(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("error: irc: %s", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(delay) * time.Second):
		}
		delay = min(delay*backoffFactor, maxRetry)
	}
}

func (a *IRC) session(ctx context.Context) error {
	t, err := a.Tokens.Token()
	if err != nil {
		return fmt.Errorf("can't connect to IRC: %s", err)
	}
	host, _, err := net.SplitHostPort(a.Server)
	if err != nil {
		return err
	}
	ic := goirc.NewConfig(a.Nick, a.Nick, "quotico evolver")
	ic.Server = a.Server
	ic.SSL = true
	ic.SSLConfig = &tls.Config{ServerName: host}
	ic.Pass = "oauth:" + t.AccessToken

	cl := goirc.Client(ic)
	done := make(chan struct{})
	var once sync.Once
	cl.HandleFunc(goirc.CONNECTED, func(conn *goirc.Conn, line *goirc.Line) {
		log.Printf("irc connected to %s", a.Server)
		conn.Join(a.Channel)
	})
	cl.HandleFunc(goirc.DISCONNECTED, func(conn *goirc.Conn, line *goirc.Line) {
		once.Do(func() { close(done) })
	})
	if err := cl.Connect(); err != nil {
		return fmt.Errorf("can't connect to IRC: %s", err)
	}
	for {
		select {
		case <-ctx.Done():
			cl.Quit("done")
			return nil
		case <-done:
			return errors.New("disconnected")
		case line := <-a.lines:
			cl.Privmsg(a.Channel, line)
		}
	}
}

// Drain waits until queued lines are handed to the connection or ctx ends.
func (a *IRC) Drain(ctx context.Context) {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for len(a.lines) > 0 {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
