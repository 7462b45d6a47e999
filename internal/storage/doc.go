// Package storage persists node authentication tokens.
//
// Two TokenStore backends share one contract:
//
//   - FileTokenStore: one file per node identity under a directory owned
//     by the store; file name is the canonical identity, content is the
//     lowercase hex token with no trailing data. This is the default.
//   - KVTokenStore: the same records kept in an embedded Badger database
//     (KVEngine), for hosts where many identities share one data dir.
//
// Both load every record at start-up and treat an unparseable record as
// fatal corruption. Set returns only after the value is durable; file
// writes go through a temp file and rename so a crash leaves either the
// old or the new whole value.
//
// LastTokenRecord is a separate flat record of the last token delivered
// by JoinComplete, kept for manual recovery.
package storage
