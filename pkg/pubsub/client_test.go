package pubsub

import (
	"testing"

	"github.com/angelmondragon/puppytalk-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	if got := ResourceName("puppytalk-dev", " pt-chat-activity-worker "); got != "projects/puppytalk-dev/subscriptions/pt-chat-activity-worker" {
		t.Fatalf("unexpected resource name %q", got)
	}
	full := "projects/other/subscriptions/custom"
	if got := ResourceName("puppytalk-dev", full); got != full {
		t.Fatalf("full resource names should pass through, got %q", got)
	}
}

func TestSubscriptionNamesSkipsBlanks(t *testing.T) {
	names := subscriptionNames(config.PubSubConfig{
		ActivitySubscription:     "activity",
		NotificationSubscription: " ",
	})
	if len(names) != 1 || names[0] != "activity" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestSubscriberWithoutClientIsNil(t *testing.T) {
	var c *Client
	if c.Subscriber("activity") != nil {
		t.Fatal("expected nil subscriber for nil client")
	}
	if (&Client{}).ActivitySubscription() != nil {
		t.Fatal("expected nil subscriber without pubsub client")
	}
}

func TestClientOptions(t *testing.T) {
	if opts := ClientOptions(config.GCPConfig{}, config.PubSubConfig{}); len(opts) != 0 {
		t.Fatalf("expected default credentials, got %d options", len(opts))
	}
	if opts := ClientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}, config.PubSubConfig{}); len(opts) != 1 {
		t.Fatalf("expected json credentials option")
	}
	if opts := ClientOptions(config.GCPConfig{ApplicationCredentials: "/secrets/sa.json"}, config.PubSubConfig{}); len(opts) != 1 {
		t.Fatalf("expected file credentials option")
	}
	emulator := ClientOptions(config.GCPConfig{CredentialsJSON: "{}"}, config.PubSubConfig{EmulatorHost: "localhost:8085"})
	if len(emulator) != 3 {
		t.Fatalf("expected emulator options to win over credentials, got %d", len(emulator))
	}
}
