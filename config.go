package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml"
)

const defaultConfigPath = "glyphs.toml"

// Config is the process configuration: node connection, network selection,
// and the handful of defaults the builder falls back to when a CLI
// invocation doesn't override them. Loaded from TOML (see config.go's
// LoadConfig) with CLI flags applied on top, the way the teacher layers
// secrets.toml under flag overrides.
type Config struct {
	Network string `toml:"network"` // "mainnet" or "testnet4"

	RPCURL        string `toml:"rpc_url"`
	RPCUser       string `toml:"rpc_user"`
	RPCPass       string `toml:"rpc_pass"`
	RPCCookiePath string `toml:"rpc_cookie_path"`

	ZMQHashBlockEndpoint string `toml:"zmq_hashblock_endpoint"`
	MintLedgerPath       string `toml:"mint_ledger_path"`

	DefaultFeeRateSatPerVB int64 `toml:"default_fee_rate_sat_per_vb"`
}

func defaultConfig() Config {
	return Config{
		Network:                string(NetworkMainnet),
		RPCURL:                 "http://127.0.0.1:8332",
		MintLedgerPath:         "glyphs_mint_ledger.sqlite",
		DefaultFeeRateSatPerVB: 1,
	}
}

// LoadConfig reads path (if present; a missing file is not an error, the
// defaults apply) and overlays it onto defaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, wrapErr(ErrInvalidArgument, "read config "+path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, wrapErr(ErrInvalidArgument, "parse config "+path, err)
	}
	return cfg, nil
}

// applyConfigFlags registers the network/node override flags shared by the
// node-facing glyphctl subcommands (issue, mint, transfer), mirroring the teacher's
// flag.String/flag.Bool idiom in its own flag-parsing startup code.
func applyConfigFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Network, "network", cfg.Network, "bitcoin network: mainnet or testnet4")
	fs.StringVar(&cfg.RPCURL, "rpc_url", cfg.RPCURL, "bitcoind JSON-RPC URL")
	fs.StringVar(&cfg.RPCUser, "rpc_user", cfg.RPCUser, "bitcoind RPC username")
	fs.StringVar(&cfg.RPCPass, "rpc_pass", cfg.RPCPass, "bitcoind RPC password")
	fs.StringVar(&cfg.RPCCookiePath, "rpc_cookie_path", cfg.RPCCookiePath, "bitcoind .cookie file path (overrides user/pass)")
	fs.Int64Var(&cfg.DefaultFeeRateSatPerVB, "fee", cfg.DefaultFeeRateSatPerVB, "fee rate in sat/vbyte")
}

func (cfg Config) network() Network {
	switch cfg.Network {
	case string(NetworkTestnet4):
		return NetworkTestnet4
	default:
		return NetworkMainnet
	}
}

// newNodeClient builds the NodeClient this config describes: cookie-file
// auth if configured, otherwise the static user/pass (autodetecting a
// cookie file as a last resort, per rpc_client.go's autodetectCookiePath).
func (cfg Config) newNodeClient() NodeClient {
	if cfg.RPCCookiePath != "" {
		return NewBitcoindClientWithCookie(cfg.RPCURL, cfg.RPCCookiePath)
	}
	if cfg.RPCUser != "" {
		return NewBitcoindClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPass)
	}
	if path, ok := autodetectCookiePath(); ok {
		return NewBitcoindClientWithCookie(cfg.RPCURL, path)
	}
	return NewBitcoindClient(cfg.RPCURL, "", "")
}

// parseUint64Flag is a small helper for subcommands that take positional
// numeric arguments (glyphctl's subcommands use flag.Args(), not flag.Uint64,
// since they're positional rather than named).
func parseUint64Flag(name, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, newErr(ErrInvalidArgument, fmt.Sprintf("%s must be a non-negative integer: %q", name, s))
	}
	return v, nil
}
