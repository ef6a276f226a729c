package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// glyphctl is the spec's CLI surface (§6): issue, mint, transfer, symbol,
// varint. Exit codes: 0 success, 1 runtime error, 2 usage error. Mirrors
// the teacher's own flat flag.FlagSet-per-subcommand style.
func main() {
	logger.setLevel(logLevelInfo)
	logger.configureWriters(os.Stdout, os.Stderr, os.Stderr, false)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "issue":
		err = runIssue(os.Args[2:])
	case "mint":
		err = runMint(os.Args[2:])
	case "transfer":
		err = runTransfer(os.Args[2:])
	case "symbol":
		err = runSymbol(os.Args[2:])
	case "varint":
		err = runVarint(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "glyphctl: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "glyphctl:", err)
		if _, isUsage := err.(usageError); isUsage {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: glyphctl <command> [flags]

commands:
  issue NAME [--divisibility N] [--symbol S] [--premine N] [--mint_cap N]
             [--mint_amount N] [--start_height N] [--end_height N]
             [--start_offset N] [--end_offset N] [--destination_address A]
             [--change_address A] [--fee N] [--nostr_pubkey HEX] [--live]
  mint GLYPH_ID AMOUNT DEST [--change_address A] [--fee N] [--nostr_pubkey HEX] [--live]
  transfer GLYPH_ID INPUT_TXID INPUT_VOUT AMOUNT DEST [--change_address A] [--fee N] [--nostr_pubkey HEX] [--live]
  symbol {encode|decode} VALUE
  varint {encode|decode} VALUE`)
}

type usageError string

func (e usageError) Error() string { return string(e) }

func newCLIConfig(fs *flag.FlagSet) (*Config, error) {
	cfg, err := LoadConfig(defaultConfigPath)
	if err != nil {
		return nil, err
	}
	applyConfigFlags(fs, &cfg)
	return &cfg, nil
}

func runIssue(args []string) error {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	cfg, err := newCLIConfig(fs)
	if err != nil {
		return err
	}
	divisibility := fs.Uint64("divisibility", 0, "decimal places")
	symbol := fs.String("symbol", "", "single-scalar display symbol")
	premine := fs.Uint64("premine", 0, "premine amount, whole units")
	mintCap := fs.Uint64("mint_cap", 0, "mint cap (0 means unset)")
	mintAmount := fs.Uint64("mint_amount", 0, "per-mint amount (0 means unset)")
	startHeight := fs.Uint64("start_height", 0, "mint window start height (0 means unset)")
	endHeight := fs.Uint64("end_height", 0, "mint window end height (0 means unset)")
	startOffset := fs.Uint64("start_offset", 0, "mint window start offset (0 means unset)")
	endOffset := fs.Uint64("end_offset", 0, "mint window end offset (0 means unset)")
	destAddr := fs.String("destination_address", "", "premine destination address")
	changeAddr := fs.String("change_address", "", "change address")
	nostrPubKey := fs.String("nostr_pubkey", "", "hex-encoded auxiliary pubkey to bind into a Taproot destination (C6)")
	live := fs.Bool("live", false, "broadcast instead of printing the unsigned transaction")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() < 1 {
		return usageError("issue requires NAME")
	}
	name := fs.Arg(0)
	auxPubKey, err := parseAuxPubKeyFlag(*nostrPubKey)
	if err != nil {
		return err
	}

	f := EtchFields{Name: name, Divisibility: *divisibility, Symbol: *symbol, Premine: *premine}
	if *mintCap > 0 {
		f.MintCap = mintCap
	}
	if *mintAmount > 0 {
		f.MintAmount = mintAmount
	}
	if *startHeight > 0 {
		f.StartHeight = startHeight
	}
	if *endHeight > 0 {
		f.EndHeight = endHeight
	}
	if *startOffset > 0 {
		f.StartOffset = startOffset
	}
	if *endOffset > 0 {
		f.EndOffset = endOffset
	}

	g := &Glyph{Name: name, Divisibility: *divisibility, Symbol: *symbol, Premine: *premine}
	if err := g.Validate(); err != nil {
		return err
	}

	node := cfg.newNodeClient()
	builder := &TxBuilder{Node: node, Params: cfg.network().ChainParams()}
	opts := BuildOptions{ChangeAddress: *changeAddr, FeeRateSatPerVB: cfg.DefaultFeeRateSatPerVB, Broadcast: *live, AuxiliaryPubKey: auxPubKey}

	res, err := builder.Etch(context.Background(), f, g.AtomicUnitsPerWhole(), *destAddr, opts)
	if err != nil {
		return err
	}
	return printBuildResult(res)
}

func runMint(args []string) error {
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	cfg, err := newCLIConfig(fs)
	if err != nil {
		return err
	}
	changeAddr := fs.String("change_address", "", "change address")
	nostrPubKey := fs.String("nostr_pubkey", "", "hex-encoded auxiliary pubkey to bind into a Taproot destination (C6)")
	live := fs.Bool("live", false, "broadcast instead of printing the unsigned transaction")
	divisibility := fs.Uint64("divisibility", 0, "decimal places of the glyph being minted")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() < 3 {
		return usageError("mint requires GLYPH_ID AMOUNT DEST")
	}
	id, err := ParseGlyphID(fs.Arg(0))
	if err != nil {
		return err
	}
	amount, err := parseUint64Flag("AMOUNT", fs.Arg(1))
	if err != nil {
		return err
	}
	dest := fs.Arg(2)
	auxPubKey, err := parseAuxPubKeyFlag(*nostrPubKey)
	if err != nil {
		return err
	}

	ledger, err := OpenMintLedger(cfg.MintLedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	node := cfg.newNodeClient()
	builder := &TxBuilder{Node: node, Params: cfg.network().ChainParams(), Ledger: ledger}
	opts := BuildOptions{ChangeAddress: *changeAddr, FeeRateSatPerVB: cfg.DefaultFeeRateSatPerVB, Broadcast: *live, AuxiliaryPubKey: auxPubKey}
	unitsPerWhole := pow10(*divisibility)

	res, err := builder.Mint(context.Background(), id, amount, unitsPerWhole, dest, opts)
	if err != nil {
		return err
	}
	return printBuildResult(res)
}

func runTransfer(args []string) error {
	fs := flag.NewFlagSet("transfer", flag.ContinueOnError)
	cfg, err := newCLIConfig(fs)
	if err != nil {
		return err
	}
	changeAddr := fs.String("change_address", "", "change address")
	nostrPubKey := fs.String("nostr_pubkey", "", "hex-encoded auxiliary pubkey to bind into a Taproot destination (C6)")
	live := fs.Bool("live", false, "broadcast instead of printing the unsigned transaction")
	divisibility := fs.Uint64("divisibility", 0, "decimal places of the glyph being transferred")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() < 5 {
		return usageError("transfer requires GLYPH_ID INPUT_TXID INPUT_VOUT AMOUNT DEST")
	}
	id, err := ParseGlyphID(fs.Arg(0))
	if err != nil {
		return err
	}
	outpoint, err := parseOutpoint(fs.Arg(1), fs.Arg(2))
	if err != nil {
		return err
	}
	amount, err := parseUint64Flag("AMOUNT", fs.Arg(3))
	if err != nil {
		return err
	}
	dest := fs.Arg(4)
	auxPubKey, err := parseAuxPubKeyFlag(*nostrPubKey)
	if err != nil {
		return err
	}

	node := cfg.newNodeClient()
	builder := &TxBuilder{Node: node, Params: cfg.network().ChainParams()}
	opts := BuildOptions{
		ChangeAddress:   *changeAddr,
		FeeRateSatPerVB: cfg.DefaultFeeRateSatPerVB,
		Broadcast:       *live,
		InputOverride:   outpoint,
		AuxiliaryPubKey: auxPubKey,
	}
	unitsPerWhole := pow10(*divisibility)

	res, err := builder.Transfer(context.Background(), id, amount, unitsPerWhole, dest, opts)
	if err != nil {
		return err
	}
	return printBuildResult(res)
}

func runSymbol(args []string) error {
	if len(args) < 2 {
		return usageError("symbol requires {encode|decode} VALUE")
	}
	switch args[0] {
	case "encode":
		n, err := nameToInt(args[1])
		if err != nil {
			return err
		}
		fmt.Println(n)
	case "decode":
		n, err := parseUint64Flag("VALUE", args[1])
		if err != nil {
			return err
		}
		name, err := intToName(n)
		if err != nil {
			return err
		}
		fmt.Println(name)
	default:
		return usageError("symbol subcommand must be encode or decode")
	}
	return nil
}

func runVarint(args []string) error {
	if len(args) < 2 {
		return usageError("varint requires {encode|decode} VALUE")
	}
	switch args[0] {
	case "encode":
		n, err := parseUint64Flag("VALUE", args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%x\n", encodeVarintBytes(n))
	case "decode":
		b, err := hexDecode(args[1])
		if err != nil {
			return newErr(ErrInvalidArgument, "VALUE must be hex: "+args[1])
		}
		n, rest, err := decodeVarint(b)
		if err != nil {
			return err
		}
		if len(rest) > 0 {
			fmt.Printf("%d (%d trailing bytes)\n", n, len(rest))
			return nil
		}
		fmt.Println(n)
	default:
		return usageError("varint subcommand must be encode or decode")
	}
	return nil
}

func printBuildResult(res *BuildResult) error {
	if res.Sent {
		fmt.Println(res.Txid.String())
		return nil
	}
	rawHex, err := serializeTxHex(res.Tx)
	if err != nil {
		return err
	}
	fmt.Println(rawHex)
	return nil
}

func pow10(n uint64) uint64 {
	u := uint64(1)
	for i := uint64(0); i < n; i++ {
		u *= 10
	}
	return u
}

// parseAuxPubKeyFlag parses the --nostr_pubkey flag (C6): a hex-encoded
// compressed or x-only public key, or "" when the flag was not given.
func parseAuxPubKeyFlag(hexKey string) (*btcec.PublicKey, error) {
	if hexKey == "" {
		return nil, nil
	}
	raw, err := hexDecode(hexKey)
	if err != nil {
		return nil, newErr(ErrInvalidArgument, "nostr_pubkey must be hex: "+hexKey)
	}
	if len(raw) == 32 {
		raw = append([]byte{0x02}, raw...)
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "parse nostr_pubkey", err)
	}
	return pub, nil
}

// parseOutpoint builds a *wire.OutPoint from a textual txid and vout, for
// transfer's INPUT_TXID/INPUT_VOUT positional arguments.
func parseOutpoint(txidStr, voutStr string) (*wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(txidStr)
	if err != nil {
		return nil, wrapErr(ErrInvalidArgument, "INPUT_TXID", err)
	}
	vout, err := parseUint64Flag("INPUT_VOUT", voutStr)
	if err != nil {
		return nil, err
	}
	return wire.NewOutPoint(hash, uint32(vout)), nil
}
