// Package cmd implements the command-line interface of dPoll. It provides the
// server and a client for the poll contract in one binary.
//
// The package is organized into several subpackages:
//
//   - serve: starts a server hosting one poll contract per shard
//   - poll: commands and queries of the contract (create, vote, get, ...) and a benchmark
//   - util: flags, environment configuration and output rendering shared by the commands
//
// Every flag can also be set as an environment variable DPOLL_<FLAG>, .env and .env.local
// are loaded on start. See dpoll -help for a list of all commands.
package cmd
