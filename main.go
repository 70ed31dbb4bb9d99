// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("ebnis-fe - Offline-First Journaling Cache and Sync Engine")
	fmt.Println("=========================================================")
	fmt.Println()
	fmt.Println("ebnis-fe keeps journal experiences and entries usable while offline and")
	fmt.Println("reconciles them with the server once connectivity returns: normalized")
	fmt.Println("cache records, an unsynced-edit ledger, batched uploads and background")
	fmt.Println("retry with exponential backoff.")
	fmt.Println()

	fmt.Println("Packages:")
	fmt.Println()
	fmt.Println("  ebnis/    Domain types: experiences, entries, offline ids, result unions")
	fmt.Println("  ebcache/  Normalized record store, mini list query, ledger, SQLite persistence")
	fmt.Println("  ebsync/   Upload/update reconcilers, transport client, retry scheduler")
	fmt.Println()

	fmt.Println("Example:")
	fmt.Println()
	fmt.Println("  Offline Flow (examples/offline_flow/)")
	fmt.Println("  Records experiences and entries offline, persists them to SQLite and")
	fmt.Println("  optionally runs one upload pass against a sync server.")
	fmt.Println("  Run: cd examples/offline_flow && go run .")
	fmt.Println()
}
