// Package storage provides the persistent state owned by the privileged
// context: the cookie store (the browser cookie jar) and a small key/value
// area for extension-local state such as last-call timestamps.
//
// # Thread Safety Guarantees
//
// BoltStore is safe for concurrent use by multiple goroutines. Reads run in
// bbolt View transactions and may proceed concurrently; writes run in Update
// transactions, which bbolt serializes. No additional locking is used.
//
// Layout:
//   - bucket "local": flat string keys to string values
//   - bucket "cookies": one nested bucket per cookie domain, keyed by path and name
package storage
