// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for the cooldown providers and the
// reconnection policy, so tests can drive rate limits and backoff
// schedules deterministically.
//
// Production code injects [Real]; tests inject [Fake] and call Advance
// to move time forward. Every component in this module that reads the
// wall clock or schedules a delayed action does so through a [Clock]
// rather than the time package directly.
package clock
