package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

// Role selects which side of the trigger channel a process uses. Startup and
// readiness only verify the resources that side needs.
type Role int

const (
	RolePublisher Role = iota + 1
	RoleSubscriber
)

func (r Role) String() string {
	switch r {
	case RolePublisher:
		return "publisher"
	case RoleSubscriber:
		return "subscriber"
	default:
		return "unknown"
	}
}

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errClientNotInitialized = errors.New("pubsub client not initialized")
)

type Client struct {
	client       *pubsub.Client
	role         Role
	topic        string
	subscription string
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, role Role, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	c := &Client{
		role:         role,
		topic:        resourceName(projectID, "topics", cfg.TriggerTopic),
		subscription: resourceName(projectID, "subscriptions", cfg.TriggerSubscription),
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c.client = psClient

	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"role":         role.String(),
			"topic":        c.topic,
			"subscription": c.subscription,
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) validate() error {
	switch c.role {
	case RolePublisher:
		if c.topic == "" {
			return errors.New("pubsub trigger topic is required")
		}
	case RoleSubscriber:
		if c.subscription == "" {
			return errors.New("pubsub trigger subscription is required")
		}
	default:
		return fmt.Errorf("unknown pubsub role %d", c.role)
	}
	return nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// resourceName expands a short id into a full resource name. Full names pass
// through unchanged.
func resourceName(projectID, collection, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+collection+"/") {
		return name
	}
	return "projects/" + projectID + "/" + collection + "/" + name
}

// TriggerPublisher returns the handle the API publishes match triggers on.
func (c *Client) TriggerPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil || c.topic == "" {
		return nil
	}
	return c.client.Publisher(c.topic)
}

// TriggerSubscription returns the handle the worker pulls match triggers from.
func (c *Client) TriggerSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil || c.subscription == "" {
		return nil
	}
	return c.client.Subscriber(c.subscription)
}

// Ping checks that the resource this role depends on exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	var err error
	switch c.role {
	case RolePublisher:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
		return describe(err, "topic", c.topic)
	default:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscription})
		return describe(err, "subscription", c.subscription)
	}
}

func describe(err error, kind, name string) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
