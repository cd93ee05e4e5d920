// Package duelboard is the Redis side of the duel service.
//
// # Overview
//
// Duel state itself is process-lifetime and lives in memory. Redis carries
// the pieces that other processes need to see:
//
//   - the duel event mirror, a Pub/Sub channel every observer notification is
//     copied to so operators can `duelsync watch` a running instance
//   - the signature ledger, which records processed and in-flight ledger
//     transaction signatures per duel so redelivered webhooks are discarded
//   - the announcement queue, a list the external social poster drains
//
// # Redis Schema
//
// All keys follow the pattern: duelsync:{instance_name}:{entity}...
//
// Processed signatures: duelsync:{instance_name}:duel:{duel_id}:signatures (SET)
// In-flight signature:  duelsync:{instance_name}:duel:{duel_id}:inflight:{signature} (STRING, PX ttl)
// Announcements:        duelsync:{instance_name}:announcements (LIST)
//
// Pub/Sub channels: duelsync:{instance_name}:duel_events
package duelboard
