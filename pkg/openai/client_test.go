package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var capturedURL string
	var capturedAuth string
	var payload ChatRequest

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedAuth = req.Header.Get("Authorization")
		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"  Woof! Where did you go?  "}}]}`), nil
	})

	client, err := NewClient("sk-test", WithBaseURL("http://openai.test/"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	text, err := client.Complete(context.Background(), ChatRequest{
		Model:       "gpt-4o-mini",
		Messages:    []Message{{Role: RoleSystem, Content: "be a dog"}, {Role: RoleUser, Content: "hi"}},
		MaxTokens:   150,
		Temperature: 0.8,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "Woof! Where did you go?" {
		t.Fatalf("unexpected text %q", text)
	}
	if capturedURL != "http://openai.test/v1/chat/completions" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", capturedAuth)
	}
	if payload.MaxTokens != 150 || payload.Temperature != 0.8 || len(payload.Messages) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestCompleteMapsErrorStatuses(t *testing.T) {
	cases := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusInternalServerError, pkgerrors.CodeGeneration},
	}
	for _, tc := range cases {
		rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(tc.status, `{"error":{"message":"nope"}}`), nil
		})
		client, _ := NewClient("sk-test", WithHTTPClient(&http.Client{Transport: rt}))
		_, err := client.Complete(context.Background(), ChatRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "x"}}})
		if !pkgerrors.IsCode(err, tc.code) {
			t.Fatalf("status %d: expected code %s, got %v", tc.status, tc.code, err)
		}
	}
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"choices":[]}`), nil
	})
	client, _ := NewClient("sk-test", WithHTTPClient(&http.Client{Transport: rt}), WithRateLimit(100, 1))
	_, err := client.Complete(context.Background(), ChatRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
}

func TestCompleteValidatesRequest(t *testing.T) {
	client, _ := NewClient("sk-test")
	if _, err := client.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser}}}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing model, got %v", err)
	}
	if _, err := client.Complete(context.Background(), ChatRequest{Model: "m"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing messages, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected api key error")
	}
}

func TestNilClientFails(t *testing.T) {
	var client *Client
	if _, err := client.Complete(context.Background(), ChatRequest{}); !pkgerrors.IsCode(err, pkgerrors.CodeGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
}
