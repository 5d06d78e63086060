// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Client wraps a GCS bucket used for archiving chat transcripts.
type Client struct {
	storageClient *storage.Client
	ProjectId     string
	BucketName    string
}

func NewClient(ctx context.Context, projectId, bucketName, saKeyPath string) (*Client, error) {
	if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", saKeyPath)
	}

	storageClient, err := storage.NewClient(ctx, option.WithCredentialsFile(saKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &Client{
		storageClient: storageClient,
		ProjectId:     projectId,
		BucketName:    bucketName,
	}, nil
}

// TranscriptObjectPath returns the bucket object name for a session
// transcript. Transcripts live under a single prefix so lifecycle
// rules can expire them as a group.
func TranscriptObjectPath(sessionID string) string {
	return path.Join("transcripts", sessionID+".json")
}

// UploadTranscript writes an exported transcript to the bucket and
// returns the gs:// URI of the created object.
func (c *Client) UploadTranscript(ctx context.Context, sessionID string, data []byte) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("cannot upload a transcript without a session id")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to upload an empty transcript for session %s", sessionID)
	}

	objectPath := TranscriptObjectPath(sessionID)
	obj := c.storageClient.Bucket(c.BucketName).Object(objectPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to copy transcript for session %s to GCS object %s: %w", sessionID, objectPath, err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", objectPath, err)
	}
	return fmt.Sprintf("gs://%s/%s", c.BucketName, objectPath), nil
}
