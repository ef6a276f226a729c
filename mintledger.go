package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// MintLedger is a local, disposable cache of etch terms and running
// minted_count per glyph (see SPEC_FULL.md §3 supplement, resolving the
// Open Question in spec.md §9). It is populated lazily by whatever blocks
// the caller has already fetched for other reasons — it never crawls the
// chain on its own, keeping the "no independent blockchain indexer"
// non-goal intact. On any disagreement with a fresh chain scan, the chain
// wins and the cached row is overwritten.
type MintLedger struct {
	db *sql.DB
}

// OpenMintLedger opens (creating if necessary) a SQLite-backed ledger at
// path. path may be ":memory:" for a purely in-process cache.
func OpenMintLedger(path string) (*MintLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapErr(ErrNodeUnavailable, "open mint ledger", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS glyphs (
	block_height INTEGER NOT NULL,
	tx_index     INTEGER NOT NULL,
	name         TEXT NOT NULL,
	divisibility INTEGER NOT NULL,
	mint_cap     INTEGER,
	mint_amount  INTEGER,
	start_height INTEGER,
	end_height   INTEGER,
	start_offset INTEGER,
	end_offset   INTEGER,
	minted_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (block_height, tx_index)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, wrapErr(ErrNodeUnavailable, "init mint ledger schema", err)
	}
	return &MintLedger{db: db}, nil
}

func (l *MintLedger) Close() error { return l.db.Close() }

// PutEtch records (or overwrites) a glyph's terms as observed on chain.
func (l *MintLedger) PutEtch(ctx context.Context, id GlyphID, g *Glyph) error {
	_, err := l.db.ExecContext(ctx, `
INSERT INTO glyphs (block_height, tx_index, name, divisibility, mint_cap, mint_amount, start_height, end_height, start_offset, end_offset, minted_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(block_height, tx_index) DO UPDATE SET
	name=excluded.name, divisibility=excluded.divisibility, mint_cap=excluded.mint_cap,
	mint_amount=excluded.mint_amount, start_height=excluded.start_height, end_height=excluded.end_height,
	start_offset=excluded.start_offset, end_offset=excluded.end_offset,
	minted_count=excluded.minted_count`,
		id.BlockHeight, id.TxIndex, g.Name, g.Divisibility,
		nullableUint(g.Terms.MintCap), nullableUint(g.Terms.MintAmount),
		nullableUint(g.Terms.StartHeight), nullableUint(g.Terms.EndHeight),
		nullableUint(g.Terms.StartOffset), nullableUint(g.Terms.EndOffset),
		g.Terms.MintedCount,
	)
	if err != nil {
		return wrapErr(ErrNodeUnavailable, "put etch", err)
	}
	return nil
}

// RecordMint bumps minted_count for id by one, returning the new count.
func (l *MintLedger) RecordMint(ctx context.Context, id GlyphID) (uint64, error) {
	res, err := l.db.ExecContext(ctx, `UPDATE glyphs SET minted_count = minted_count + 1 WHERE block_height = ? AND tx_index = ?`, id.BlockHeight, id.TxIndex)
	if err != nil {
		return 0, wrapErr(ErrNodeUnavailable, "record mint", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, newErr(ErrNotFound, fmt.Sprintf("glyph %s not in mint ledger", id))
	}
	return l.MintedCount(ctx, id)
}

// MintedCount returns the cached minted_count for id.
func (l *MintLedger) MintedCount(ctx context.Context, id GlyphID) (uint64, error) {
	var n uint64
	err := l.db.QueryRowContext(ctx, `SELECT minted_count FROM glyphs WHERE block_height = ? AND tx_index = ?`, id.BlockHeight, id.TxIndex).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, newErr(ErrNotFound, fmt.Sprintf("glyph %s not in mint ledger", id))
	}
	if err != nil {
		return 0, wrapErr(ErrNodeUnavailable, "read minted count", err)
	}
	return n, nil
}

// Terms loads the cached MintTerms for id, or ErrNotFound.
func (l *MintLedger) Terms(ctx context.Context, id GlyphID) (*MintTerms, error) {
	var t MintTerms
	var mintCap, mintAmount, startHeight, endHeight, startOffset, endOffset sql.NullInt64
	err := l.db.QueryRowContext(ctx, `SELECT mint_cap, mint_amount, start_height, end_height, start_offset, end_offset, minted_count FROM glyphs WHERE block_height = ? AND tx_index = ?`,
		id.BlockHeight, id.TxIndex).Scan(&mintCap, &mintAmount, &startHeight, &endHeight, &startOffset, &endOffset, &t.MintedCount)
	if err == sql.ErrNoRows {
		return nil, newErr(ErrNotFound, fmt.Sprintf("glyph %s not in mint ledger", id))
	}
	if err != nil {
		return nil, wrapErr(ErrNodeUnavailable, "read mint terms", err)
	}
	t.EtchHeight = id.BlockHeight
	t.MintCap = fromNullable(mintCap)
	t.MintAmount = fromNullable(mintAmount)
	t.StartHeight = fromNullable(startHeight)
	t.EndHeight = fromNullable(endHeight)
	t.StartOffset = fromNullable(startOffset)
	t.EndOffset = fromNullable(endOffset)
	return &t, nil
}

func nullableUint(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNullable(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}
