// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/BudulAI/BudulGo/cmd/budul/config"
	"github.com/BudulAI/BudulGo/pkg/ux"
)

// runMetaCommand fetches and displays backend metadata.
//
// # Description
//
// Fetches the topic and madhab catalogs in parallel and renders them.
// Both catalogs are fail-soft on the client: an unreachable topics
// endpoint yields an empty list and a missing madhab catalog yields
// just "general", so this command only fails when the request cannot
// be built at all.
func runMetaCommand(cmd *cobra.Command, args []string) {
	cfg := config.Get()
	client := newAPIClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Backend.MetaTimeout())
	defer cancel()

	var topics, madhabs []string
	err := ux.WithSpinner("Fetching backend metadata", func() error {
		var ferr error
		topics, madhabs, ferr = client.Metadata(ctx)
		return ferr
	})
	if err != nil {
		log.Fatalf("Failed to fetch metadata: %v", err)
	}

	if ux.GetMode().Level == ux.ModeMachine {
		line, _ := json.Marshal(map[string][]string{
			"topics":  topics,
			"madhabs": madhabs,
		})
		fmt.Println(string(line))
		return
	}

	ux.Title("Budul Knowledge Base")

	fmt.Println()
	fmt.Println(ux.Styles.Title.Render("Madhabs"))
	for _, m := range madhabs {
		fmt.Printf("  %s %s\n", ux.IconBullet.Render(), m)
	}

	fmt.Println()
	fmt.Println(ux.Styles.Title.Render("Topics"))
	if len(topics) == 0 {
		ux.Muted("  (the backend did not report any topics)")
		return
	}
	for _, t := range topics {
		fmt.Printf("  %s %s\n", ux.IconBullet.Render(), t)
	}
}
