// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"errors"
	"testing"
)

func TestStateMachineConnectFlow(t *testing.T) {
	machine := NewStateMachine(testLogger())
	var kinds []StateKind
	machine.SetListener(func(change StateChange) {
		kinds = append(kinds, change.New.Kind)
	})

	if got := machine.Current().Kind; got != StateIdle {
		t.Fatalf("initial state = %v, want idle", got)
	}
	if err := machine.OnConnect(); err != nil {
		t.Fatalf("OnConnect: %v", err)
	}
	machine.OnConnectionOpened()
	machine.OnConfiguring()
	machine.OnSessionConfigured(true, true)

	want := []StateKind{StateConnecting, StateConnected, StateConfiguring, StateConfigured}
	if len(kinds) != len(want) {
		t.Fatalf("observed %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("observed %v, want %v", kinds, want)
		}
	}
	state := machine.Current()
	if !state.Connected || !state.NewSession {
		t.Fatalf("configured state = %+v, want connected new session", state)
	}
}

func TestStateMachineConnectRejectedWhileActive(t *testing.T) {
	machine := NewStateMachine(testLogger())
	if err := machine.OnConnect(); err != nil {
		t.Fatalf("OnConnect: %v", err)
	}
	machine.OnConnectionOpened()

	err := machine.OnConnect()
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("OnConnect from connected = %v, want StateError", err)
	}
	if stateErr.State != StateConnected {
		t.Fatalf("StateError.State = %v, want connected", stateErr.State)
	}
}

func TestStateMachineReconnectingIsSticky(t *testing.T) {
	machine := NewStateMachine(testLogger())
	machine.OnReconnect()

	if err := machine.OnConnect(); err != nil {
		t.Fatalf("OnConnect while reconnecting: %v", err)
	}
	machine.OnConnectionOpened()
	if got := machine.Current().Kind; got != StateReconnecting {
		t.Fatalf("state after reopen = %v, want reconnecting", got)
	}
	machine.OnSessionConfigured(true, false)
	if got := machine.Current().Kind; got != StateConfigured {
		t.Fatalf("state after configure = %v, want configured", got)
	}
}

func TestStateMachineOperationGuards(t *testing.T) {
	machine := NewStateMachine(testLogger())

	if err := machine.CheckConfigured("sendMessage"); err == nil {
		t.Fatal("CheckConfigured in idle should fail")
	}
	if err := machine.CheckCanStartNewChat(); err == nil {
		t.Fatal("CheckCanStartNewChat in idle should fail")
	}

	machine.OnSessionConfigured(true, false)
	if err := machine.CheckConfigured("sendMessage"); err != nil {
		t.Fatalf("CheckConfigured in configured: %v", err)
	}
	if err := machine.CheckCanStartNewChat(); err == nil {
		t.Fatal("CheckCanStartNewChat in configured should fail: chat still in progress")
	}

	machine.OnReadOnly()
	if err := machine.CheckConfigured("sendMessage"); err == nil {
		t.Fatal("CheckConfigured in read-only should fail")
	}
	if err := machine.CheckConfiguredOrReadOnly("fetchNextPage"); err != nil {
		t.Fatalf("CheckConfiguredOrReadOnly in read-only: %v", err)
	}
	if err := machine.CheckCanStartNewChat(); err != nil {
		t.Fatalf("CheckCanStartNewChat in read-only: %v", err)
	}
}

func TestStateMachineErrorIsTerminal(t *testing.T) {
	machine := NewStateMachine(testLogger())
	machine.OnSessionConfigured(true, false)
	machine.OnError(CodeAuthFailed, "bad jwt")

	state := machine.Current()
	if state.Kind != StateKindError || state.ErrorCode != CodeAuthFailed {
		t.Fatalf("error state = %+v", state)
	}
	if !state.IsInactive() {
		t.Fatalf("error state not inactive: %+v", state)
	}

	// Guards report the failed state until a fresh connect.
	err := machine.CheckConfigured("sendMessage")
	var stateErr *StateError
	if !errors.As(err, &stateErr) || stateErr.State != StateKindError {
		t.Fatalf("CheckConfigured in error = %v", err)
	}
	if err := machine.OnConnect(); err != nil {
		t.Fatalf("OnConnect after error: %v", err)
	}
}

func TestStateMachineClosing(t *testing.T) {
	machine := NewStateMachine(testLogger())

	if err := machine.OnClosing(1000, "bye"); err == nil {
		t.Fatal("OnClosing in idle should fail")
	}

	machine.OnSessionConfigured(true, false)
	if err := machine.OnClosing(1000, "bye"); err != nil {
		t.Fatalf("OnClosing: %v", err)
	}
	state := machine.Current()
	if state.Kind != StateClosing || state.Code != 1000 || state.Reason != "bye" {
		t.Fatalf("closing state = %+v", state)
	}
	if !state.IsClosing() || !state.IsInactive() {
		t.Fatalf("closing predicates wrong for %+v", state)
	}

	machine.OnClosed(1000, "bye")
	if got := machine.Current().Kind; got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}
