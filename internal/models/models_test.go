package models

import (
	"encoding/json"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{"prompt", "prompt", ModePrompt, false},
		{"history upper", "HISTORY", ModeHistory, false},
		{"stream padded", " stream ", ModeStream, false},
		{"empty defaults to stream", "", ModeStream, false},
		{"unknown", "websocket", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestModeTraits(t *testing.T) {
	if ModePrompt.SendsHistory() || ModePrompt.Streaming() {
		t.Error("prompt mode sends neither history nor streams")
	}
	if !ModeHistory.SendsHistory() || ModeHistory.Streaming() {
		t.Error("history mode sends history without streaming")
	}
	if !ModeStream.SendsHistory() || !ModeStream.Streaming() {
		t.Error("stream mode sends history and streams")
	}
	if len(AllModes()) != 3 {
		t.Errorf("AllModes() returned %d modes, expected 3", len(AllModes()))
	}
}

func TestUserMessageTrims(t *testing.T) {
	msg := UserMessage("  Hello \n")
	if msg.Role != RoleUser || msg.Content != "Hello" {
		t.Errorf("UserMessage = %+v", msg)
	}
}

func TestErrorMessage(t *testing.T) {
	msg := ErrorMessage()
	if msg.Role != RoleAssistant || msg.Content != "Error connecting to server." {
		t.Errorf("ErrorMessage = %+v", msg)
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleUser.Valid() || !RoleAssistant.Valid() {
		t.Error("known roles should be valid")
	}
	if Role("system").Valid() {
		t.Error("system role is not part of the conversation")
	}
}

func TestHistoryRequestJSON(t *testing.T) {
	req := HistoryRequest{
		Messages: []Message{UserMessage("Hi")},
		Model:    DefaultModel,
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"messages":[{"role":"user","content":"Hi"}],"model":"llama3.1"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
