package main

import (
	"context"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/pebbe/zmq4"
)

// BlockNotifier is an optional, async complement to polling
// get_block_count: it subscribes to bitcoind's ZMQ "hashblock" topic and
// keeps the most recently announced block hash plus a count of
// notifications. It does not track block height. The swap engine does not
// consult it: every swap precondition check (§5) queries the node adapter
// directly before assembling a transaction.
type BlockNotifier struct {
	endpoint string

	mu        sync.RWMutex
	lastHash  string
	sawBlocks atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBlockNotifier subscribes to endpoint (e.g. "tcp://127.0.0.1:28332",
// bitcoind's -zmqpubhashblock address). The subscription runs in a
// background goroutine until ctx is canceled or Stop is called.
func NewBlockNotifier(ctx context.Context, endpoint string) (*BlockNotifier, error) {
	sock, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, wrapErr(ErrNodeUnavailable, "create zmq subscriber", err)
	}
	if err := sock.Connect(endpoint); err != nil {
		sock.Close()
		return nil, wrapErr(ErrNodeUnavailable, "connect zmq "+endpoint, err)
	}
	if err := sock.SetSubscribe("hashblock"); err != nil {
		sock.Close()
		return nil, wrapErr(ErrNodeUnavailable, "subscribe zmq hashblock", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	n := &BlockNotifier{
		endpoint: endpoint,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go n.run(runCtx, sock)
	return n, nil
}

func (n *BlockNotifier) run(ctx context.Context, sock *zmq4.Socket) {
	defer close(n.done)
	defer sock.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		parts, err := sock.RecvMessageBytes(0)
		if err != nil {
			logger.Debug("zmq recv error", "endpoint", n.endpoint, "error", err)
			continue
		}
		if len(parts) < 2 {
			continue
		}
		hashHex := hex.EncodeToString(reverseBytes(parts[1]))
		n.mu.Lock()
		n.lastHash = hashHex
		n.mu.Unlock()
		n.sawBlocks.Add(1)
		logger.Debug("zmq observed new block", "hash", hashHex)
	}
}

// LastHash returns the most recently observed block hash (big-endian hex,
// matching getblockhash's convention), or "" if none has been seen yet.
func (n *BlockNotifier) LastHash() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastHash
}

// BlocksObserved returns the number of hashblock notifications seen since
// the notifier started, for diagnostics.
func (n *BlockNotifier) BlocksObserved() int64 { return n.sawBlocks.Load() }

// Stop tears down the subscription and waits for its goroutine to exit.
func (n *BlockNotifier) Stop() {
	n.cancel()
	<-n.done
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
