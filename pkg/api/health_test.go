// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClient_HealthCheck_OperationalCountsHealthy verifies the
// nonstandard "operational" status still reports connected.
func TestClient_HealthCheck_OperationalCountsHealthy(t *testing.T) {
	var gotPath string
	server := newTestServer(t, func(r *gin.Engine) {
		r.GET("/", func(c *gin.Context) {
			gotPath = c.Request.URL.Path
			c.JSON(http.StatusOK, gin.H{"status": "operational", "service": "budul-backend"})
		})
	})

	status, err := newTestClient(server.URL).HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/", gotPath, "health root must not live under /api/v1")
	assert.Equal(t, "operational", status.Status)
	assert.Equal(t, "budul-backend", status.Service)
	assert.True(t, status.Healthy())
}

// TestClient_HealthCheck_EmptyBodyCountsHealthy verifies a bare 2xx is
// normalized to healthy.
func TestClient_HealthCheck_EmptyBodyCountsHealthy(t *testing.T) {
	server := newTestServer(t, func(r *gin.Engine) {
		r.GET("/", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
	})

	status, err := newTestClient(server.URL).HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.True(t, status.Healthy())
}

// TestClient_HealthCheck_Non2xxIsConnectivityError verifies an unhealthy
// backend classifies as a connectivity failure.
func TestClient_HealthCheck_Non2xxIsConnectivityError(t *testing.T) {
	server := newTestServer(t, func(r *gin.Engine) {
		r.GET("/", func(c *gin.Context) {
			c.String(http.StatusServiceUnavailable, "maintenance")
		})
	})

	_, err := newTestClient(server.URL).HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectivityError(err))
}

// TestClient_HealthCheck_TransportErrorIsConnectivityError verifies an
// unreachable backend classifies as a connectivity failure.
func TestClient_HealthCheck_TransportErrorIsConnectivityError(t *testing.T) {
	mock := &MockHTTPDoer{
		DoFunc: func(*http.Request) (*http.Response, error) {
			return nil, errors.New("no route to host")
		},
	}

	_, err := newMockClient(mock).HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectivityError(err))
}

// TestClient_HealthCheck_OptimisticSkipsNetwork verifies the optimistic
// strategy never touches the wire.
func TestClient_HealthCheck_OptimisticSkipsNetwork(t *testing.T) {
	mock := &MockHTTPDoer{
		DoFunc: func(*http.Request) (*http.Response, error) {
			t.Fatal("optimistic health check must not perform I/O")
			return nil, nil
		},
	}

	cfg := DefaultConfig("http://backend.test")
	cfg.HealthStrategy = OptimisticHealthCheck{}
	client := NewClientWithHTTPClient(cfg, mock)

	status, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy())
	assert.Equal(t, 0, mock.RequestCount())
}

// TestClient_HealthCheck_ConcurrentCallsShareProbe verifies overlapping
// checks collapse into fewer requests than callers.
func TestClient_HealthCheck_ConcurrentCallsShareProbe(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	server := newTestServer(t, func(r *gin.Engine) {
		r.GET("/", func(c *gin.Context) {
			mu.Lock()
			calls++
			if calls == 1 {
				close(started)
			}
			mu.Unlock()
			<-release
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})
	})

	client := newTestClient(server.URL)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := client.HealthCheck(context.Background())
		assert.NoError(t, err)
	}()
	<-started

	// The first probe is now blocked inside the handler; these callers
	// must join it rather than open their own.
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.HealthCheck(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, calls, 4, "concurrent checks should share in-flight probes")
}

// TestHealthStatus_Healthy covers the status string equivalents.
func TestHealthStatus_Healthy(t *testing.T) {
	for _, status := range []string{"healthy", "operational", "OK", "up", "Online", "assumed_healthy"} {
		assert.True(t, HealthStatus{Status: status}.Healthy(), status)
	}
	for _, status := range []string{"", "down", "degraded", "maintenance"} {
		assert.False(t, HealthStatus{Status: status}.Healthy(), status)
	}
}
