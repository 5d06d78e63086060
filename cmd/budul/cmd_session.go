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
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BudulAI/BudulGo/cmd/budul/config"
	"github.com/BudulAI/BudulGo/cmd/budul/gcs"
	"github.com/BudulAI/BudulGo/pkg/chat"
	"github.com/BudulAI/BudulGo/pkg/history"
	"github.com/BudulAI/BudulGo/pkg/ux"
)

// TranscriptExport is the JSON document written by `budul session
// export`. The shape is stable; scripts and the GCS archive depend on
// it.
type TranscriptExport struct {
	Session    history.SessionRecord `json:"session"`
	Messages   []chat.Message        `json:"messages"`
	ExportedAt time.Time             `json:"exported_at"`
}

func runListSessions(cmd *cobra.Command, args []string) {
	cfg := config.Get()

	store, err := openHistoryStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open the local history store: %v", err)
	}
	defer store.Close()

	sessions, err := store.Sessions(context.Background())
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}

	if ux.GetMode().Level == ux.ModeMachine {
		line, _ := json.Marshal(sessions)
		fmt.Println(string(line))
		return
	}

	if len(sessions) == 0 {
		fmt.Println("No saved sessions found.")
		return
	}

	fmt.Println("Saved Sessions:")
	fmt.Println("------------------------------------------------------------------")
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("ID: %s\nTitle: %s\n", s.ID, title)
		fmt.Printf("Madhab: %s | Messages: %d | Updated: %s\n\n",
			s.Madhab, s.Messages, ux.RelativeTime(s.UpdatedAt))
	}
}

func runShowSession(cmd *cobra.Command, args []string) {
	cfg := config.Get()
	sessionId := args[0]

	store, err := openHistoryStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open the local history store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	rec, err := store.Session(ctx, sessionId)
	if errors.Is(err, history.ErrSessionNotFound) {
		ux.Error(fmt.Sprintf("No saved session with ID %s", sessionId))
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}

	msgs, err := store.Messages(ctx, sessionId)
	if err != nil {
		log.Fatalf("Failed to load session messages: %v", err)
	}

	if rec.Title != "" {
		ux.Title(rec.Title)
	}
	ux.Muted(fmt.Sprintf("Session %s | started %s", rec.ID, ux.RelativeTime(rec.StartedAt)))
	fmt.Println()

	ux.NewChatUI().Transcript(msgs)
}

// runExportSession writes a transcript as JSON to stdout, a file, or
// the configured GCS bucket.
//
// # Description
//
// The export bundles the session record and every stored message into
// one TranscriptExport document. With --gcs the document is uploaded to
// export.gcs_bucket under transcripts/{session_id}.json and the gs://
// URI is printed; with --out it is written to the given file; otherwise
// it goes to stdout for piping.
func runExportSession(cmd *cobra.Command, args []string) {
	cfg := config.Get()
	sessionId := args[0]

	store, err := openHistoryStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open the local history store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	rec, err := store.Session(ctx, sessionId)
	if errors.Is(err, history.ErrSessionNotFound) {
		ux.Error(fmt.Sprintf("No saved session with ID %s", sessionId))
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}

	msgs, err := store.Messages(ctx, sessionId)
	if err != nil {
		log.Fatalf("Failed to load session messages: %v", err)
	}

	data, err := json.MarshalIndent(TranscriptExport{
		Session:    rec,
		Messages:   msgs,
		ExportedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode transcript: %v", err)
	}
	data = append(data, '\n')

	switch {
	case exportToGCS:
		if cfg.Export.GCSBucket == "" {
			log.Fatalf("export.gcs_bucket is not configured; set it in %s", configPathForDisplay())
		}
		uploader, err := gcs.NewClient(ctx, cfg.Export.GCSProject, cfg.Export.GCSBucket, cfg.Export.GCSKeyFile)
		if err != nil {
			log.Fatalf("Failed to create GCS client: %v", err)
		}
		uri, err := uploader.UploadTranscript(ctx, sessionId, data)
		if err != nil {
			log.Fatalf("Failed to upload transcript: %v", err)
		}
		ux.Success("Transcript uploaded to " + uri)

	case exportOut != "":
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			log.Fatalf("Failed to write transcript: %v", err)
		}
		ux.Success("Transcript written to " + exportOut)

	default:
		fmt.Print(string(data))
	}
}

func runDeleteSession(cmd *cobra.Command, args []string) {
	cfg := config.Get()
	sessionId := args[0]

	store, err := openHistoryStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open the local history store: %v", err)
	}
	defer store.Close()

	// DeleteSession is idempotent, so look the record up first to give
	// a useful message for typo'd ids.
	ctx := context.Background()
	if _, err := store.Session(ctx, sessionId); errors.Is(err, history.ErrSessionNotFound) {
		ux.Error(fmt.Sprintf("No saved session with ID %s", sessionId))
		os.Exit(1)
	}

	if err := store.DeleteSession(ctx, sessionId); err != nil {
		log.Fatalf("Failed to delete session: %v", err)
	}

	fmt.Printf("Successfully deleted session: %s\n", sessionId)
}

// configPathForDisplay returns the config file path for error messages,
// falling back to the bare filename when the home directory is unknown.
func configPathForDisplay() string {
	p, err := config.Path()
	if err != nil {
		return "budul.yaml"
	}
	return p
}
