package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kringlelabs/kringle/internal/notify"
	"github.com/kringlelabs/kringle/internal/phase"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/providers"
	"github.com/kringlelabs/kringle/internal/server/endpoints"
	"github.com/kringlelabs/kringle/internal/testutil"
)

// TestServer_ChatFlow drives the full conversation lifecycle over HTTP:
// profile creation, join, a streamed turn observed over the subscription
// socket, transcript retrieval, and reset.
func TestServer_ChatFlow(t *testing.T) {
	cfg := testutil.NewServerConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	srv, err := New(Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		InMemory: true,
		Logger:   cfg.Logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	mock := providers.NewMockClient()
	mock.Latency = 0
	mock.Responses = []string{"I understand", "Ho ho ho! What is your cat's name?"}
	srv.Registry().Register(providers.MockClientName, mock)
	srv.Registry().SetDefault(providers.MockClientName)

	serverErr := make(chan error, 1)
	serverCtx, serverCancel := context.WithCancel(ctx)
	go func() {
		serverErr <- srv.Start(serverCtx)
	}()
	t.Cleanup(func() {
		serverCancel()
		<-serverErr
	})

	if err := testutil.WaitForServer(cfg.URL(), 30*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}

	client := testutil.HTTPClient()
	var passcode string

	t.Run("create_profile", func(t *testing.T) {
		doc := profile.Document{
			Name:   "Alex",
			Age:    8,
			Gender: "boy",
			Facts:  []string{"has a cat named Waffles"},
			Presents: []profile.Present{
				{Order: 1, Description: "a red bicycle"},
			},
		}
		body, _ := json.Marshal(doc)
		resp, err := client.Post(cfg.URL()+"/v1/profiles", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("create request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		var created endpoints.CreateProfileResponse
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		passcode = created.Profile.Passcode
		if len(passcode) != 6 {
			t.Fatalf("passcode = %q, want 6 characters", passcode)
		}
	})

	t.Run("create_rejects_invalid_document", func(t *testing.T) {
		resp, err := client.Post(cfg.URL()+"/v1/profiles", "application/json",
			strings.NewReader(`{"name":"Alex"}`))
		if err != nil {
			t.Fatalf("create request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("join_is_case_insensitive", func(t *testing.T) {
		resp, err := client.Post(cfg.URL()+"/v1/chat/"+strings.ToLower(passcode)+"/join",
			"application/json", nil)
		if err != nil {
			t.Fatalf("join request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("join status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		var joined endpoints.JoinChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&joined); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if joined.Name != "Alex" {
			t.Errorf("joined.Name = %q, want Alex", joined.Name)
		}
	})

	t.Run("join_unknown_passcode", func(t *testing.T) {
		resp, err := client.Post(cfg.URL()+"/v1/chat/ZZZZZZ/join", "application/json", nil)
		if err != nil {
			t.Fatalf("join request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("send_message_streams_to_subscriber", func(t *testing.T) {
		wsURL := fmt.Sprintf("ws://%s:%d/v1/chat/%s/subscribe", cfg.Host, cfg.Port, passcode)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			t.Fatalf("subscribe dial failed: %v", err)
		}
		defer conn.Close()

		body, _ := json.Marshal(endpoints.SendMessageRequest{Message: "Hi Santa!"})
		resp, err := client.Post(cfg.URL()+"/v1/chat/"+passcode+"/messages",
			"application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("send request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("send status = %d, want %d", resp.StatusCode, http.StatusAccepted)
		}

		// Collect events until done-typing arrives.
		var events []notify.Event
		conn.SetReadDeadline(time.Now().Add(15 * time.Second))
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("read failed before done-typing: %v (got %+v)", err, events)
			}
			var e notify.Event
			if err := json.Unmarshal(payload, &e); err != nil {
				t.Fatalf("failed to decode event: %v", err)
			}
			events = append(events, e)
			if e.Type == notify.EventDoneTyping {
				break
			}
		}

		if events[0].Type != notify.EventStartTyping {
			t.Errorf("first event = %q, want start-typing", events[0].Type)
		}
		last := events[len(events)-1]
		if last.Content == "" {
			t.Error("done-typing carried no content")
		}
	})

	t.Run("history_records_turn", func(t *testing.T) {
		resp, err := client.Get(cfg.URL() + "/v1/chat/" + passcode + "/history")
		if err != nil {
			t.Fatalf("history request failed: %v", err)
		}
		defer resp.Body.Close()

		var hist endpoints.ChatHistoryResponse
		if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(hist.Entries) != 2 {
			t.Fatalf("history entries = %d, want 2: %+v", len(hist.Entries), hist.Entries)
		}
		if hist.Entries[0].Username != "Alex" || hist.Entries[0].Message != "Hi Santa!" {
			t.Errorf("first entry = %+v", hist.Entries[0])
		}
	})

	t.Run("turn_advances_phase", func(t *testing.T) {
		resp, err := client.Get(cfg.URL() + "/v1/profiles/" + passcode)
		if err != nil {
			t.Fatalf("get request failed: %v", err)
		}
		defer resp.Body.Close()

		var p profile.Profile
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if p.Phase != phase.Verifying {
			t.Errorf("phase = %q, want verifying", p.Phase)
		}
	})

	t.Run("reset_chat", func(t *testing.T) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodDelete,
			cfg.URL()+"/v1/profiles/"+passcode+"/chat", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("reset request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("reset status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var p profile.Profile
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if p.Phase != phase.Unstarted {
			t.Errorf("phase after reset = %q, want unstarted", p.Phase)
		}

		histResp, err := client.Get(cfg.URL() + "/v1/chat/" + passcode + "/history")
		if err != nil {
			t.Fatalf("history request failed: %v", err)
		}
		defer histResp.Body.Close()
		var hist endpoints.ChatHistoryResponse
		if err := json.NewDecoder(histResp.Body).Decode(&hist); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(hist.Entries) != 0 {
			t.Errorf("history after reset = %d entries, want 0", len(hist.Entries))
		}
	})
}
