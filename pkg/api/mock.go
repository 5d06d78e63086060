// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockHTTPDoer is a test double for HTTPDoer.
//
// Set DoFunc to script responses; every request is recorded for
// assertions. The zero value answers 200 with an empty JSON object.
//
// Example:
//
//	mock := &api.MockHTTPDoer{
//	    DoFunc: func(req *http.Request) (*http.Response, error) {
//	        return nil, errors.New("dial refused")
//	    },
//	}
//	client := api.NewClientWithHTTPClient(cfg, mock)
type MockHTTPDoer struct {
	DoFunc func(req *http.Request) (*http.Response, error)

	mu       sync.Mutex
	Requests []*http.Request
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.DoFunc != nil {
		return m.DoFunc(req)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Header:     make(http.Header),
	}, nil
}

// RequestCount returns how many requests were executed.
func (m *MockHTTPDoer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastRequest returns the most recent request, or nil.
func (m *MockHTTPDoer) LastRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[len(m.Requests)-1]
}

var _ HTTPDoer = (*MockHTTPDoer)(nil)
