package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/bytedance/sonic"
)

// BitcoindClient implements NodeClient over bitcoind's JSON-RPC interface,
// authenticating via its cookie file the way goPool's config_rpc.go
// auto-detects and watches it. Encoding uses bytedance/sonic rather than
// encoding/json, matching this repo's node-adapter JSON codec choice
// (see SPEC_FULL.md's domain stack table).
type BitcoindClient struct {
	url        string
	httpClient *http.Client

	mu       sync.RWMutex
	user     string
	pass     string
	cookiePath string
}

// NewBitcoindClient constructs an adapter talking to url (e.g.
// "http://127.0.0.1:8332"), authenticating with a static user/pass.
func NewBitcoindClient(url, user, pass string) *BitcoindClient {
	return &BitcoindClient{
		url:        url,
		user:       user,
		pass:       pass,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewBitcoindClientWithCookie constructs an adapter that reads its
// credentials from a bitcoind .cookie file, re-reading it on every call so
// credential rotation (bitcoind restarts) is picked up transparently.
func NewBitcoindClientWithCookie(url, cookiePath string) *BitcoindClient {
	return &BitcoindClient{
		url:        url,
		cookiePath: cookiePath,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *BitcoindClient) credentials() (string, string, error) {
	c.mu.RLock()
	cookiePath := c.cookiePath
	user, pass := c.user, c.pass
	c.mu.RUnlock()

	if cookiePath == "" {
		return user, pass, nil
	}
	data, err := os.ReadFile(cookiePath)
	if err != nil {
		return "", "", wrapErr(ErrNodeUnavailable, "read rpc cookie "+cookiePath, err)
	}
	parts := strings.SplitN(strings.TrimSpace(string(data)), ":", 2)
	if len(parts) != 2 {
		return "", "", newErr(ErrNodeUnavailable, "malformed rpc cookie "+cookiePath)
	}
	return parts[0], parts[1], nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// call performs one JSON-RPC call, decoding its result into out (a
// pointer). A transport-level failure is reported as ErrNodeUnavailable; a
// well-formed JSON-RPC error response is wrapped as-is so callers can tell
// "missing inputs" (UTXOConflict) apart from a down node.
func (c *BitcoindClient) call(ctx context.Context, method string, params []any, out any) error {
	user, pass, err := c.credentials()
	if err != nil {
		return err
	}

	reqBody, err := sonic.Marshal(rpcRequest{JSONRPC: "1.0", ID: "glyphs", Method: method, Params: params})
	if err != nil {
		return wrapErr(ErrInvalidArgument, "marshal rpc request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return wrapErr(ErrNodeUnavailable, "build rpc request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.SetBasicAuth(user, pass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return wrapErr(ErrNodeUnavailable, "rpc "+method+" timed out", err)
		}
		return wrapErr(ErrNodeUnavailable, "rpc "+method+" transport error", err)
	}
	defer resp.Body.Close()

	var rr rpcResponse
	dec := sonic.ConfigDefault.NewDecoder(resp.Body)
	if err := dec.Decode(&rr); err != nil {
		return wrapErr(ErrNodeUnavailable, "decode rpc response for "+method, err)
	}
	if rr.Error != nil {
		if isMissingInputsError(rr.Error.Message) {
			return wrapErr(ErrUTXOConflict, method, rr.Error)
		}
		return wrapErr(ErrNodeUnavailable, method, rr.Error)
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(rr.Result, out); err != nil {
		return wrapErr(ErrNodeUnavailable, "unmarshal rpc result for "+method, err)
	}
	return nil
}

func isMissingInputsError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "missing inputs") || strings.Contains(lower, "bad-txns-inputs") ||
		strings.Contains(lower, "txn-mempool-conflict")
}

func (c *BitcoindClient) ListUnspent(ctx context.Context) ([]UTXO, error) {
	var raw []struct {
		Txid          string `json:"txid"`
		Vout          uint32 `json:"vout"`
		Address       string `json:"address"`
		ScriptPubKey  string `json:"scriptPubKey"`
		Amount        float64 `json:"amount"`
		Confirmations int64  `json:"confirmations"`
	}
	if err := c.call(ctx, "listunspent", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]UTXO, 0, len(raw))
	for _, u := range raw {
		hash, err := chainhash.NewHashFromStr(u.Txid)
		if err != nil {
			return nil, wrapErr(ErrNodeUnavailable, "listunspent txid", err)
		}
		script, err := hexDecode(u.ScriptPubKey)
		if err != nil {
			return nil, wrapErr(ErrNodeUnavailable, "listunspent scriptPubKey", err)
		}
		out = append(out, UTXO{
			Txid:          *hash,
			Vout:          u.Vout,
			ValueSat:      btcToSat(u.Amount),
			ScriptPubKey:  script,
			Address:       u.Address,
			Confirmations: u.Confirmations,
		})
	}
	return out, nil
}

func (c *BitcoindClient) GetBlockCount(ctx context.Context) (uint64, error) {
	var h uint64
	err := c.call(ctx, "getblockcount", nil, &h)
	return h, err
}

func (c *BitcoindClient) GetBlockHash(ctx context.Context, height uint64) (chainhash.Hash, error) {
	var s string
	if err := c.call(ctx, "getblockhash", []any{height}, &s); err != nil {
		return chainhash.Hash{}, err
	}
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, wrapErr(ErrNodeUnavailable, "getblockhash result", err)
	}
	return *h, nil
}

func (c *BitcoindClient) GetBlock(ctx context.Context, id chainhash.Hash) (*BlockInfo, error) {
	var raw struct {
		Hash   string `json:"hash"`
		Height uint64 `json:"height"`
		Tx     []struct {
			Txid string `json:"txid"`
			Vout []struct {
				Value        float64 `json:"value"`
				ScriptPubKey struct {
					Hex string `json:"hex"`
				} `json:"scriptPubKey"`
			} `json:"vout"`
		} `json:"tx"`
	}
	if err := c.call(ctx, "getblock", []any{id.String(), 2}, &raw); err != nil {
		return nil, err
	}
	bi := &BlockInfo{Height: raw.Height}
	if h, err := chainhash.NewHashFromStr(raw.Hash); err == nil {
		bi.Hash = *h
	}
	for _, tx := range raw.Tx {
		rt := RawTx{}
		if h, err := chainhash.NewHashFromStr(tx.Txid); err == nil {
			rt.Txid = *h
		}
		for _, vout := range tx.Vout {
			script, err := hexDecode(vout.ScriptPubKey.Hex)
			if err != nil {
				continue
			}
			rt.Outputs = append(rt.Outputs, RawTxOut{ValueSat: btcToSat(vout.Value), PkScript: script})
		}
		bi.Transactions = append(bi.Transactions, rt)
	}
	return bi, nil
}

func (c *BitcoindClient) GetRawTransaction(ctx context.Context, txid chainhash.Hash) (*RawTx, error) {
	var raw struct {
		Txid string `json:"txid"`
		Vout []struct {
			Value        float64 `json:"value"`
			ScriptPubKey struct {
				Hex string `json:"hex"`
			} `json:"scriptPubKey"`
		} `json:"vout"`
	}
	if err := c.call(ctx, "getrawtransaction", []any{txid.String(), true}, &raw); err != nil {
		return nil, err
	}
	rt := &RawTx{Txid: txid}
	for _, vout := range raw.Vout {
		script, err := hexDecode(vout.ScriptPubKey.Hex)
		if err != nil {
			return nil, wrapErr(ErrNodeUnavailable, "getrawtransaction scriptPubKey", err)
		}
		rt.Outputs = append(rt.Outputs, RawTxOut{ValueSat: btcToSat(vout.Value), PkScript: script})
	}
	return rt, nil
}

func (c *BitcoindClient) GetTxOut(ctx context.Context, txid chainhash.Hash, vout uint32) (*TxOutInfo, error) {
	var raw *struct {
		Value        float64 `json:"value"`
		Confirmations int64  `json:"confirmations"`
		ScriptPubKey struct {
			Hex string `json:"hex"`
		} `json:"scriptPubKey"`
	}
	if err := c.call(ctx, "gettxout", []any{txid.String(), vout}, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		// Absence signals spent, per §6.
		return nil, nil
	}
	script, err := hexDecode(raw.ScriptPubKey.Hex)
	if err != nil {
		return nil, wrapErr(ErrNodeUnavailable, "gettxout scriptPubKey", err)
	}
	return &TxOutInfo{ValueSat: btcToSat(raw.Value), ScriptPubKey: script, Confirmations: raw.Confirmations}, nil
}

func (c *BitcoindClient) GetAddressInfo(ctx context.Context, address string) (*AddressInfo, error) {
	var raw struct {
		Address string `json:"address"`
		PubKey  string `json:"pubkey"`
	}
	if err := c.call(ctx, "getaddressinfo", []any{address}, &raw); err != nil {
		return nil, err
	}
	return &AddressInfo{Address: raw.Address, PubKeyHex: raw.PubKey}, nil
}

func (c *BitcoindClient) GetNewAddress(ctx context.Context) (string, error) {
	var addr string
	err := c.call(ctx, "getnewaddress", nil, &addr)
	return addr, err
}

func (c *BitcoindClient) SignRawTransactionWithWallet(ctx context.Context, txHex string) (string, bool, error) {
	var raw struct {
		Hex      string `json:"hex"`
		Complete bool   `json:"complete"`
	}
	if err := c.call(ctx, "signrawtransactionwithwallet", []any{txHex}, &raw); err != nil {
		return "", false, err
	}
	return raw.Hex, raw.Complete, nil
}

func (c *BitcoindClient) SendRawTransaction(ctx context.Context, txHex string) (chainhash.Hash, error) {
	var s string
	if err := c.call(ctx, "sendrawtransaction", []any{txHex}, &s); err != nil {
		return chainhash.Hash{}, err
	}
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, wrapErr(ErrNodeUnavailable, "sendrawtransaction result", err)
	}
	return *h, nil
}

// autodetectCookiePath mirrors config_rpc.go's cookie-discovery idiom: try
// a handful of well-known bitcoind data directories before giving up.
func autodetectCookiePath() (string, bool) {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, ".bitcoin", ".cookie"),
		filepath.Join(home, "Library", "Application Support", "Bitcoin", ".cookie"),
		"/root/.bitcoin/.cookie",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, true
		}
	}
	if len(candidates) > 0 {
		return candidates[0], false
	}
	return "", false
}
