// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import "testing"

func TestCustomAttributesLifecycle(t *testing.T) {
	store := NewCustomAttributesStore(testLogger())

	if !store.Add(map[string]string{"plan": "gold"}) {
		t.Fatal("first add reported no change")
	}
	if store.State() != AttributesPending {
		t.Fatalf("state = %v, want pending", store.State())
	}

	batch := store.ToSend()
	if batch["plan"] != "gold" {
		t.Fatalf("ToSend = %v", batch)
	}
	store.OnSending()
	if store.ToSend() != nil {
		t.Fatal("in-flight batch offered for sending again")
	}
	store.OnSent()
	if store.State() != AttributesSent {
		t.Fatalf("state = %v, want sent", store.State())
	}
	if store.ToSend() != nil {
		t.Fatal("sent batch offered for sending again")
	}
}

func TestCustomAttributesIdenticalAddIsNoop(t *testing.T) {
	store := NewCustomAttributesStore(testLogger())
	store.Add(map[string]string{"plan": "gold"})
	store.OnSending()
	store.OnSent()

	if store.Add(map[string]string{"plan": "gold"}) {
		t.Fatal("identical add reported a change")
	}
	if store.State() != AttributesSent {
		t.Fatalf("state = %v, want sent", store.State())
	}
}

func TestCustomAttributesChangeWhileInFlight(t *testing.T) {
	store := NewCustomAttributesStore(testLogger())
	store.Add(map[string]string{"plan": "gold"})
	store.OnSending()

	// A change while the batch is in flight marks it pending again;
	// the late confirmation of the old batch must not clobber that.
	store.Add(map[string]string{"plan": "platinum"})
	store.OnSent()

	if store.State() != AttributesPending {
		t.Fatalf("state = %v, want pending", store.State())
	}
	if batch := store.ToSend(); batch["plan"] != "platinum" {
		t.Fatalf("ToSend = %v", batch)
	}
}

func TestCustomAttributesMessageErrorRetries(t *testing.T) {
	store := NewCustomAttributesStore(testLogger())
	store.Add(map[string]string{"plan": "gold"})
	store.OnSending()
	store.OnMessageError()

	if batch := store.ToSend(); batch == nil {
		t.Fatal("batch not offered again after carrier message failed")
	}
}

func TestCustomAttributesRejectedBatchRetries(t *testing.T) {
	store := NewCustomAttributesStore(testLogger())
	store.Add(map[string]string{"blob": "oversized"})
	store.OnSending()
	store.OnError()

	if store.State() != AttributesFailed {
		t.Fatalf("state = %v, want failed", store.State())
	}
	if batch := store.ToSend(); batch["blob"] != "oversized" {
		t.Fatalf("rejected batch not offered with the next send: %v", batch)
	}

	store.Add(map[string]string{"blob": "small"})
	if store.State() != AttributesPending {
		t.Fatalf("state = %v, want pending after correction", store.State())
	}
	if batch := store.ToSend(); batch["blob"] != "small" {
		t.Fatalf("corrected batch not offered: %v", batch)
	}
}

func TestCustomAttributesSessionClosed(t *testing.T) {
	store := NewCustomAttributesStore(testLogger())
	store.Add(map[string]string{"plan": "gold"})
	store.OnSessionClosed()

	if len(store.Get()) != 0 {
		t.Fatal("attributes survived session close")
	}
	if store.ToSend() != nil {
		t.Fatal("empty store offered a batch")
	}
}
