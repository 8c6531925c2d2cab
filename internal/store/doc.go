// Package store provides SQL-backed durable storage for the referral system.
//
// The store holds four aggregates plus the tunables table:
//   - Balances: per-member token ledger entries
//   - Invites: personal referral links
//   - Referrals: the lifecycle records
//   - Reward Awards: (user, tier) idempotency proofs
//   - Config: string key/value tunables
//
// # Critical Patterns
//
// Guarded transitions
//   - Every status change is UPDATE ... WHERE status IN (<expected>) RETURNING.
//   - A guard miss returns applied=false and is never an error.
//   - Only the caller whose UPDATE returned a row may apply side effects.
//
// Transition and refund are one unit
//   - Fail with refund runs the guarded UPDATE and the balance increment in
//     a single transaction, so overlapping sweeps refund at most once.
//
// One active referral per invitee
//   - CreatePending checks for a non-terminal row before inserting, and a
//     partial unique index on invitee_id (status IN pending, holding)
//     rejects concurrent inserts from other processes.
//
// Deterministic reads
//   - List queries order by id ASC unless a ranking is requested.
//
// # Drivers
//
//   - sqlite3 (default): WAL mode, synchronous=NORMAL, busy_timeout=5000,
//     a single open connection (single writer).
//   - postgres: for several processes sharing one store. Statements are
//     written with ? placeholders and rebound to $n.
//
// Timestamps are stored as Unix seconds.
package store
