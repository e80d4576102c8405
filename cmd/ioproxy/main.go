// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

// Command ioproxy is a small demo built on the ioreactor: it accepts
// connections on -listen, dials -target for each one, and relays bytes
// between the two over the reactor's async primitives, with at most
// -max-conns relays in flight at once.
package main

import (
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/xtaci/ioreactor"
	"github.com/xtaci/ioreactor/async"
	"github.com/xtaci/ioreactor/internal/stats"
	"github.com/xtaci/ioreactor/std"
)

func main() {
	app := cli.NewApp()
	app.Name = "ioproxy"
	app.Usage = "relay TCP connections through the ioreactor"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen,l",
			Value: "127.0.0.1:3000",
			Usage: "listen address",
		},
		cli.StringFlag{
			Name:  "target,t",
			Value: "127.0.0.1:8080",
			Usage: "address every accepted connection is relayed to",
		},
		cli.IntFlag{
			Name:  "max-conns",
			Value: 10,
			Usage: "maximum number of in-flight relays",
		},
		cli.BoolFlag{
			Name:  "multiplex",
			Usage: "multiplex relayed connections over a single smux session to the target",
		},
		cli.StringFlag{
			Name:  "stats",
			Usage: "CSV file to periodically append reactor counters to (e.g. stats-20060102.csv)",
		},
		cli.IntFlag{
			Name:  "stats-interval",
			Value: 5,
			Usage: "seconds between stats rows",
		},
		cli.StringFlag{
			Name:  "c",
			Usage: "config from json file, which will override the command from shell",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	config := Config{
		Listen:        c.String("listen"),
		Target:        c.String("target"),
		MaxConns:      c.Int("max-conns"),
		Multiplex:     c.Bool("multiplex"),
		Stats:         c.String("stats"),
		StatsInterval: c.Int("stats-interval"),
	}
	if path := c.String("c"); path != "" {
		// Only JSON configuration files are supported at the moment.
		if err := parseJSONConfig(&config, path); err != nil {
			return errors.Wrap(err, "ioproxy: parse config")
		}
	}

	listenAddr := config.Listen
	targetAddr := config.Target
	maxConns := config.MaxConns
	multiplex := config.Multiplex

	log.Println("listening on:", listenAddr)
	log.Println("target:", targetAddr)
	log.Println("max-conns:", maxConns)
	log.Println("multiplex:", multiplex)

	counters := &stats.Counters{}
	go stats.Logger(config.Stats, time.Duration(config.StatsInterval)*time.Second, counters)

	reactor, err := ioreactor.Start()
	if err != nil {
		return errors.Wrap(err, "ioproxy: start reactor")
	}
	defer reactor.Close()

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return errors.Wrap(err, "ioproxy: listen")
	}
	defer ln.Close()

	accepted, err := reactor.Accept(ln)
	if err != nil {
		return errors.Wrap(err, "ioproxy: register listener")
	}

	var mux *smuxSession
	if multiplex {
		mux, err = newSmuxSession(targetAddr)
		if err != nil {
			return errors.Wrap(err, "ioproxy: multiplex dial")
		}
		defer mux.Close()
	}

	fmt.Fprintf(color.Output, " + accepting on %s, relaying to %s\n", listenAddr, targetAddr)

	sem := make(chan struct{}, maxConns)
	var wg sync.WaitGroup

	for {
		item, tail := accepted.Receive().Wait()
		if item.Err != nil {
			break
		}
		accepted = tail

		sem <- struct{}{}
		wg.Add(1)
		go func(pair ioreactor.Pair) {
			defer wg.Done()
			defer func() { <-sem }()
			counters.AddAccept()
			if err := handle(reactor, pair, targetAddr, mux, counters); err != nil {
				counters.AddError()
			}
		}(item.Value)
	}

	wg.Wait()
	return nil
}

// handle dials the target (directly, or opens a multiplexed smux stream)
// and relays bytes between it and the accepted pair in both directions,
// returning once both directions have ended.
func handle(r ioreactor.Reactor, pair ioreactor.Pair, targetAddr string, mux *smuxSession, counters *stats.Counters) error {
	var dstSink *async.Sink[[]byte]
	var dstSource *async.Source[[]byte]

	if mux != nil {
		stream, err := mux.OpenStream()
		if err != nil {
			return errors.Wrap(err, "ioproxy: open smux stream")
		}
		defer stream.Close()
		dstSink, dstSource = std.WrapReadWriteCloser(stream)
	} else {
		targetConn, err := net.DialTCP("tcp", nil, mustResolve(targetAddr))
		if err != nil {
			return errors.Wrap(err, "ioproxy: dial target")
		}
		counters.AddConnect()
		dstSink, dstSource, err = r.Stream(targetConn)
		if err != nil {
			targetConn.Close()
			return errors.Wrap(err, "ioproxy: register target")
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); pump(pair.Source, dstSink, counters) }()
	go func() { defer wg.Done(); pump(dstSource, pair.Sink, counters) }()
	wg.Wait()
	counters.AddClose()
	return nil
}

// pump relays src's chunks into dst until src ends or dst is aborted,
// closing the side that reached end-of-stream (or failing it, on error)
// so its peer observes end-of-stream too.
func pump(src *async.Source[[]byte], dst *async.Sink[[]byte], counters *stats.Counters) {
	for {
		item, tail := src.Receive().Wait()
		if item.Err != nil {
			if item.Err == io.EOF {
				dst.Close()
			} else {
				dst.Fail(item.Err)
			}
			return
		}
		counters.AddBytesRead(len(item.Value))

		next, err := dst.Send(item.Value).Wait()
		if err != nil {
			src.Close()
			return
		}
		counters.AddBytesWrote(len(item.Value))
		dst = next
		src = tail
	}
}

func mustResolve(addr string) *net.TCPAddr {
	a, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		// The target address is not validated at startup, so a bad one
		// first surfaces here; it is a configuration mistake the operator
		// needs to see immediately.
		color.Red("ioproxy: bad target address %q: %v", addr, err)
		os.Exit(1)
	}
	return a
}
