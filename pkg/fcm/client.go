package fcm

import (
	"context"
	"errors"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/angelmondragon/puppytalk-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/puppytalk-backend/pkg/errors"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
)

var errCredentialsRequired = errors.New("fcm credentials file is required")

type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Client delivers push notifications to single device tokens through
// Firebase Cloud Messaging.
type Client struct {
	messaging sender
	limiter   *rate.Limiter
	logg      *logger.Logger
}

// New initializes the Firebase app from a service account file.
func New(ctx context.Context, cfg config.FCMConfig, logg *logger.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errCredentialsRequired
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initialize firebase app")
	}
	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initialize firebase messaging")
	}

	logg.Info(ctx, "fcm client initialized")
	return newClient(msgClient, cfg.RPS, cfg.Burst, logg), nil
}

func newClient(s sender, rps float64, burst int, logg *logger.Logger) *Client {
	c := &Client{messaging: s, logg: logg}
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

// Send delivers one notification to one token. Failures are returned as
// TRANSPORT_FAILURE errors.
func (c *Client) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if c == nil || c.messaging == nil {
		return pkgerrors.New(pkgerrors.CodeTransport, "fcm client not configured")
	}
	if strings.TrimSpace(token) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "device token is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeTransport, err, "wait for fcm rate limiter")
		}
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	if _, err := c.messaging.Send(ctx, message); err != nil {
		if messaging.IsUnregistered(err) {
			return pkgerrors.Wrap(pkgerrors.CodeTransport, err, "device token unregistered")
		}
		return pkgerrors.Wrap(pkgerrors.CodeTransport, err, "fcm send")
	}
	return nil
}

// Disabled stands in when no credentials are configured. Every send fails
// so notifications age through the normal retry budget.
type Disabled struct{}

func (Disabled) Send(context.Context, string, string, string, map[string]string) error {
	return pkgerrors.New(pkgerrors.CodeTransport, "push transport unavailable")
}
