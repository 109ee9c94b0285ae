// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package api wraps the messaging gateway's HTTP surface: paged
// conversation history, pre-signed attachment upload, the JWT
// exchange/refresh/logout endpoints, and the deployment configuration
// CDN.
//
// All API errors are returned as [*Error] with the HTTP status code
// and raw response body; callers use errors.As to classify them.
// Context cancellation is returned unwrapped-able to context.Canceled
// so callers can swallow it; a cancelled request is never a session
// failure.
package api
