// Package lease serializes migration runs with a single-row lease held via
// lightweight transactions.
//
// A run takes the lease before applying anything and releases it on exit.
// Every transition (acquire, steal, renew, release) is a compare-and-set, so
// two concurrent runners can never both believe they hold it. Expiry is the
// only recovery path from a crashed holder: a lease past its expires_at may
// be stolen, which is why the TTL must comfortably exceed the longest
// expected apply.
package lease
