package tracking

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendDeliversEvent(t *testing.T) {
	received := make(chan Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var event Event
		_ = json.Unmarshal(body, &event)
		received <- event
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := New(server.URL, nil)
	done := client.Send(Event{Command: "analyze", Plugin: "sitecore", Findings: 3, Score: 87})
	<-done

	select {
	case event := <-received:
		assert.Equal(t, "analyze", event.Command)
		assert.Equal(t, "sitecore", event.Plugin)
		assert.Equal(t, 3, event.Findings)
		assert.NotEmpty(t, event.Timestamp)
	default:
		t.Fatal("webhook never received the event")
	}
}

func TestSendNoURLIsNoop(t *testing.T) {
	client := New("", nil)
	done := client.Send(Event{Command: "analyze"})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("empty URL should complete immediately")
	}
}

func TestSendSurvivesFailingEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, nil)
	done := client.Send(Event{Command: "analyze"})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("delivery should finish despite server error")
	}
}

func TestSendSurvivesUnreachableEndpoint(t *testing.T) {
	client := New("http://127.0.0.1:1/unreachable", nil)
	client.HTTPClient = &http.Client{Timeout: 200 * time.Millisecond}
	done := client.Send(Event{Command: "analyze"})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("delivery should finish despite unreachable endpoint")
	}
}
