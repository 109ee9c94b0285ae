// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"strings"
	"testing"
)

func marshal(t *testing.T, request any) map[string]any {
	t.Helper()
	data, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return decoded
}

func TestConfigureSessionRequest(t *testing.T) {
	payload := marshal(t, NewConfigureSessionRequest("token-1", "dep-1", false))
	if payload["action"] != ActionConfigureSession {
		t.Fatalf("action = %v", payload["action"])
	}
	if payload["token"] != "token-1" || payload["deploymentId"] != "dep-1" {
		t.Fatalf("payload = %v", payload)
	}
	if _, present := payload["startNew"]; present {
		t.Fatal("startNew serialized when false")
	}
	journey := payload["journeyContext"].(map[string]any)
	customer := journey["customer"].(map[string]any)
	if customer["id"] != "token-1" || customer["idType"] != "cookie" {
		t.Fatalf("journey customer = %v", customer)
	}
	session := journey["customerSession"].(map[string]any)
	if session["type"] != "web" {
		t.Fatalf("journey session = %v", session)
	}

	payload = marshal(t, NewConfigureSessionRequest("token-1", "dep-1", true))
	if payload["startNew"] != true {
		t.Fatal("startNew not serialized when set")
	}
}

func TestConfigureAuthenticatedSessionRequest(t *testing.T) {
	payload := marshal(t, NewConfigureAuthenticatedSessionRequest("token-1", "dep-1", false, "jwt-1"))
	if payload["action"] != ActionConfigureAuthenticatedSession {
		t.Fatalf("action = %v", payload["action"])
	}
	data := payload["data"].(map[string]any)
	if data["code"] != "jwt-1" {
		t.Fatalf("data = %v", data)
	}
}

func TestOnMessageRequest(t *testing.T) {
	channel := NewChannel(map[string]string{"plan": "gold"})
	content := []MessageContent{
		{ContentType: ContentTypeAttachment, Attachment: &AttachmentRef{ID: "att-1"}},
	}
	payload := marshal(t, NewOnMessageRequest("token-1", "hello", "msg-1", channel, content))
	if payload["action"] != ActionOnMessage {
		t.Fatalf("action = %v", payload["action"])
	}
	message := payload["message"].(map[string]any)
	if message["text"] != "hello" || message["type"] != "Text" {
		t.Fatalf("message = %v", message)
	}
	metadata := message["metadata"].(map[string]any)
	if metadata["customMessageId"] != "msg-1" {
		t.Fatalf("metadata = %v", metadata)
	}
	attributes := message["channel"].(map[string]any)["metadata"].(map[string]any)["customAttributes"].(map[string]any)
	if attributes["plan"] != "gold" {
		t.Fatalf("attributes = %v", attributes)
	}
	ref := message["content"].([]any)[0].(map[string]any)["attachment"].(map[string]any)
	if ref["id"] != "att-1" {
		t.Fatalf("attachment ref = %v", ref)
	}
}

func TestOnMessageRequestOmitsEmptyParts(t *testing.T) {
	data, err := json.Marshal(NewOnMessageRequest("token-1", "hello", "msg-1", nil, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{"channel", "content"} {
		if strings.Contains(string(data), `"`+key+`"`) {
			t.Fatalf("empty %s serialized: %s", key, data)
		}
	}
}

func TestNewChannelEmpty(t *testing.T) {
	if NewChannel(nil) != nil {
		t.Fatal("NewChannel(nil) != nil")
	}
	if NewChannel(map[string]string{}) != nil {
		t.Fatal("NewChannel(empty) != nil")
	}
}

func TestQuickReplyRequest(t *testing.T) {
	response := ButtonResponse{Text: "Yes", Payload: "YES", Type: "QuickReply"}
	payload := marshal(t, NewQuickReplyRequest("token-1", "msg-1", response, nil))
	message := payload["message"].(map[string]any)
	if message["text"] != "Yes" {
		t.Fatalf("message = %v", message)
	}
	button := message["content"].([]any)[0].(map[string]any)["buttonResponse"].(map[string]any)
	if button["payload"] != "YES" || button["type"] != "QuickReply" {
		t.Fatalf("button = %v", button)
	}
}

func TestEchoRequest(t *testing.T) {
	payload := marshal(t, NewEchoRequest("token-1"))
	if payload["action"] != ActionEcho {
		t.Fatalf("action = %v", payload["action"])
	}
	metadata := payload["message"].(map[string]any)["metadata"].(map[string]any)
	if metadata["customMessageId"] != HealthCheckID {
		t.Fatalf("metadata = %v", metadata)
	}
}

func TestEventRequests(t *testing.T) {
	payload := marshal(t, NewUserTypingRequest("token-1"))
	message := payload["message"].(map[string]any)
	if message["type"] != "Event" {
		t.Fatalf("message = %v", message)
	}
	event := message["events"].([]any)[0].(map[string]any)
	if event["eventType"] != "Typing" || event["typing"].(map[string]any)["type"] != "On" {
		t.Fatalf("event = %v", event)
	}

	payload = marshal(t, NewAutoStartRequest("token-1", NewChannel(map[string]string{"plan": "gold"})))
	message = payload["message"].(map[string]any)
	event = message["events"].([]any)[0].(map[string]any)
	if event["eventType"] != "Presence" || event["presence"].(map[string]any)["type"] != "Join" {
		t.Fatalf("event = %v", event)
	}
	if _, present := message["channel"]; !present {
		t.Fatal("autostart dropped the attribute channel")
	}
}

func TestAttachmentRequests(t *testing.T) {
	payload := marshal(t, NewOnAttachmentRequest("token-1", "att-1", "cat.png", "image/png", 2048))
	if payload["action"] != ActionOnAttachment || payload["errorsAsJson"] != true {
		t.Fatalf("payload = %v", payload)
	}
	if payload["fileName"] != "cat.png" || payload["fileType"] != "image/png" {
		t.Fatalf("payload = %v", payload)
	}

	payload = marshal(t, NewDeleteAttachmentRequest("token-1", "att-1"))
	if payload["action"] != ActionDeleteAttachment || payload["attachmentId"] != "att-1" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestSessionControlRequests(t *testing.T) {
	payload := marshal(t, NewCloseSessionRequest("token-1", true))
	if payload["action"] != ActionCloseSession || payload["closeAllConnections"] != true {
		t.Fatalf("payload = %v", payload)
	}

	payload = marshal(t, NewClearConversationRequest("token-1"))
	if payload["action"] != ActionClearConversation || payload["token"] != "token-1" {
		t.Fatalf("payload = %v", payload)
	}

	payload = marshal(t, NewGetJwtRequest("token-1"))
	if payload["action"] != ActionGetJwt || payload["token"] != "token-1" {
		t.Fatalf("payload = %v", payload)
	}
}
