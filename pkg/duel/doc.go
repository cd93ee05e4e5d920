// Package duel provides the shared type definitions for the duel
// synchronization service.
//
// # Overview
//
// A duel is a race between two freshly minted tokens, side A and side B.
// Buyers push SOL into either side's bonding curve and the first side whose
// raised amount reaches the target wins. The on-chain program decides the
// winner; this service only observes it.
//
// # Core Concepts
//
// State is the authoritative snapshot of one duel. It is owned by the state
// store and replaced wholesale on every accepted reconciliation.
//
// Challenge is a proposed duel parsed from a social post that is waiting for
// the named opponent to accept.
//
// LedgerEvent and Post are the two kinds of raw, untrusted input. Neither is
// trusted as truth: a ledger event only tells the engine which duel to
// re-fetch, and a post only proposes or accepts a challenge.
//
// # Amounts
//
// Raised amounts and targets are unsigned lamport counts (1 SOL = 1e9
// lamports). Both sides always use the same unit.
package duel
