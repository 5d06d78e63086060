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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	outputMode       string // UX output level (full/standard/minimal/machine)
	streamResponses  bool   // Stream answer tokens as they arrive
	madhabSchool     string // CLI override for chat.madhab
	chatLanguage     string // CLI override for chat.language
	resumeSession    string // Session ID to resume
	noLocalHistory   bool   // Skip the local BadgerDB transcript store
	optimisticHealth bool   // Assume the backend is healthy without probing
	exportOut        string // Destination file for session export
	exportToGCS      bool   // Upload the export to Google Cloud Storage
	listenUser       string // User ID for the websocket listener
	listenSession    string // Session ID for the websocket listener

	rootCmd = &cobra.Command{
		Use:   "budul",
		Short: "A cli for talking to the Budul Islamic knowledge assistant",
		Long: `Budul is a command line client for the Budul AI platform.
				It answers questions about Islam with citations from the Quran
				and authenticated hadith collections, keeps conversation
				history on your own machine, and can follow a live session
				over a websocket.`,
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive chat session",
		Run:   runChatCommand, // Defined in cmd_chat.go
	}

	// --- Metadata ---
	metaCmd = &cobra.Command{
		Use:   "meta",
		Short: "List the topics and madhabs the backend knows about",
		Run:   runMetaCommand, // Defined in cmd_meta.go
	}

	// --- Sessions ---
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Manage locally stored conversation sessions",
	}
	listSessionsCmd = &cobra.Command{
		Use:   "list",
		Short: "List all saved conversation sessions",
		Run:   runListSessions, // Defined in cmd_session.go
	}
	showSessionCmd = &cobra.Command{
		Use:   "show [session_id]",
		Short: "Replay the transcript of a saved session",
		Args:  cobra.ExactArgs(1),
		Run:   runShowSession, // Defined in cmd_session.go
	}
	exportSessionCmd = &cobra.Command{
		Use:   "export [session_id]",
		Short: "Export a session transcript as JSON",
		Args:  cobra.ExactArgs(1),
		Run:   runExportSession, // Defined in cmd_session.go
	}
	deleteSessionCmd = &cobra.Command{
		Use:   "delete [session_id]",
		Short: "Delete a specific conversation session",
		Args:  cobra.ExactArgs(1),
		Run:   runDeleteSession, // Defined in cmd_session.go
	}

	// --- Live Listener ---
	listenCmd = &cobra.Command{
		Use:   "listen",
		Short: "Follow a chat session live over the backend websocket",
		Run:   runListenCommand, // Defined in cmd_listen.go
	}
)

// init runs when the Go program starts
func init() {
	// Global UX output flag
	rootCmd.PersistentFlags().StringVar(&outputMode, "output", "",
		"Output style: full (default), standard, minimal, or machine (scripting)")

	// chat command
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().BoolVar(&streamResponses, "stream", false,
		"Stream answer tokens as the backend produces them")
	chatCmd.Flags().StringVar(&madhabSchool, "madhab", "",
		"School of jurisprudence for answers (general, hanafi, maliki, shafi, hanbali)")
	chatCmd.Flags().StringVar(&chatLanguage, "language", "",
		"Preferred answer language (e.g. en, ar)")
	chatCmd.Flags().StringVar(&resumeSession, "session", "",
		"Resume a conversation using a specific session ID")
	chatCmd.Flags().BoolVar(&noLocalHistory, "no-history", false,
		"Do not record this conversation in the local history store")
	chatCmd.Flags().BoolVar(&optimisticHealth, "optimistic-health", false,
		"Skip the startup health probe and assume the backend is up")

	// metadata command
	rootCmd.AddCommand(metaCmd)

	// session commands
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(listSessionsCmd)
	sessionCmd.AddCommand(showSessionCmd)
	sessionCmd.AddCommand(exportSessionCmd)
	exportSessionCmd.Flags().StringVar(&exportOut, "out", "",
		"Write the transcript to this file instead of stdout")
	exportSessionCmd.Flags().BoolVar(&exportToGCS, "gcs", false,
		"Upload the transcript to the configured GCS bucket")
	sessionCmd.AddCommand(deleteSessionCmd)

	// live listener command
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringVar(&listenUser, "user", "",
		"User ID for the websocket connection (defaults to 'local')")
	listenCmd.Flags().StringVar(&listenSession, "session", "",
		"Session ID to follow (defaults to a new random session)")
}
