// Package db provides a standardized interface for ordered key-value database implementations.
// It defines the KVDB interface that allows for consistent interaction
// with various database backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for ordered key-value operations
//   - Feature discovery through capability flags
//   - Standardized persistence operations
//   - Metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides point operations (Set, Get, Has, Delete), atomic batch writes (Apply),
//     ordered range scans (Range), metadata retrieval (GetInfo) and persistence
//     operations (Save, Load).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. This allows clients to
//     discover supported operations at runtime.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for the database backends ("maple" and "leveldb").
//
//   - Database Information: The DatabaseInfo structure provides standardized
//     reporting on database state, including size statistics, implementation type,
//     and implementation-specific metadata. Size statistics are estimates.
//
// Implementations:
//
//   - maple (lib/db/engines/maple): in-memory B-tree, snapshots via Save/Load.
//   - leveldb (lib/db/engines/leveldb): persistent LevelDB database.
//
// Every implementation is verified with the shared suite in lib/db/testing.
package db
