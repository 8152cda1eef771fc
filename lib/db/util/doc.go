// Package util provides utility components for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - functions: Hash functions used to derive numeric ids from names
//   - sampling: A value size sampler used by GetInfo implementations to
//     estimate the database size without a full scan
package util
