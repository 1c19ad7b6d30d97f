package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tendermint/tendermint/libs/log"
)

func main() {
	var (
		target      string
		connections int
		rate        int
		txSize      int
		duration    int
		verbose     bool
	)

	flag.StringVar(&target, "target", "127.0.0.1:26657", "node rpc address to flood")
	flag.IntVar(&connections, "c", 1, "connections to keep open per endpoint")
	flag.IntVar(&rate, "r", 1000, "txs per second to send per connection")
	flag.IntVar(&txSize, "s", 250, "size per tx in bytes")
	flag.IntVar(&duration, "T", 10, "exit after this many seconds")
	flag.BoolVar(&verbose, "v", false, "verbose output")

	flag.Usage = func() {
		fmt.Println("bench floods a node with unique transactions over websocket rpc")
		fmt.Println("Usage: bench [-target 127.0.0.1:26657] [-c 1] [-r 1000] [-s 250] [-T 10]")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := log.NewNopLogger()
	if verbose {
		logger = log.NewTMLogger(log.NewSyncWriter(os.Stdout))
	}

	t := newTransacter(target, connections, rate, txSize)
	t.SetLogger(logger)
	if err := t.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	timer := time.NewTimer(time.Duration(duration) * time.Second)
	<-timer.C
	t.Stop()
}
