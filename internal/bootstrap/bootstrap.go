// Package bootstrap builds the bridge's collaborators from environment
// variables at cold start. Nothing here runs per request.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/planlos/ticket-account-bridge/internal/identity"
	"github.com/planlos/ticket-account-bridge/internal/notify"
	"github.com/planlos/ticket-account-bridge/internal/ordergateway"
	"github.com/planlos/ticket-account-bridge/internal/pretix"
)

// httpTimeout bounds every outbound HTTP call
const httpTimeout = 30 * time.Second

// Env looks up environment variables; os.Getenv in production
type Env func(name string) string

// SecretReader reads configuration values from AWS
type SecretReader interface {
	GetSecretJSON(ctx context.Context, secretARN string, out any) error
	GetBoolParameter(ctx context.Context, name string) (bool, error)
}

// MissingEnvError names a required environment variable that is unset
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return e.Name + " environment variable is required"
}

// Require returns the variable's value or a *MissingEnvError
func (env Env) Require(name string) (string, error) {
	v := strings.TrimSpace(env(name))
	if v == "" {
		return "", &MissingEnvError{Name: name}
	}
	return v, nil
}

// Default returns the variable's value or def when unset
func (env Env) Default(name, def string) string {
	if v := strings.TrimSpace(env(name)); v != "" {
		return v
	}
	return def
}

// Bool parses a boolean variable, returning def when unset
func (env Env) Bool(name string, def bool) (bool, error) {
	v := strings.TrimSpace(env(name))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", name, err)
	}
	return b, nil
}

// RetryPolicy reads "<prefix>_RETRIES" and "<prefix>_DELAY_SECONDS"
func (env Env) RetryPolicy(prefix string, def ordergateway.RetryPolicy) (ordergateway.RetryPolicy, error) {
	policy := def
	if v := strings.TrimSpace(env(prefix + "_RETRIES")); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return policy, fmt.Errorf("%s_RETRIES must be a non-negative integer: %w", prefix, err)
		}
		policy.Retries = uint(n)
	}
	if v := strings.TrimSpace(env(prefix + "_DELAY_SECONDS")); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 {
			return policy, fmt.Errorf("%s_DELAY_SECONDS must be a non-negative number", prefix)
		}
		policy.Delay = time.Duration(n * float64(time.Second))
	}
	return policy, nil
}

// OrderAPIEnabled resolves the kill switch. An SSM parameter named by
// ORDER_API_ENABLED_PARAMETER wins over ORDER_API_ENABLED; both unset
// means enabled.
func OrderAPIEnabled(ctx context.Context, env Env, reader SecretReader) (bool, error) {
	if param := env.Default("ORDER_API_ENABLED_PARAMETER", ""); param != "" {
		enabled, err := reader.GetBoolParameter(ctx, param)
		if err != nil {
			return false, fmt.Errorf("failed to read kill switch %s: %w", param, err)
		}
		return enabled, nil
	}
	return env.Bool("ORDER_API_ENABLED", true)
}

type pretixSecret struct {
	Token string `json:"token"`
}

// NewOrderGateway builds the order gateway and its HTTP client
func NewOrderGateway(ctx context.Context, env Env, reader SecretReader, logger *slog.Logger) (*ordergateway.Gateway, error) {
	baseURL, err := env.Require("PRETIX_URL")
	if err != nil {
		return nil, err
	}
	organizer, err := env.Require("PRETIX_ORGANIZER")
	if err != nil {
		return nil, err
	}
	enabled, err := OrderAPIEnabled(ctx, env, reader)
	if err != nil {
		return nil, err
	}
	single, err := env.RetryPolicy("ORDER_FETCH", ordergateway.DefaultSingleRetry)
	if err != nil {
		return nil, err
	}
	bulk, err := env.RetryPolicy("ORDER_LIST", ordergateway.DefaultBulkRetry)
	if err != nil {
		return nil, err
	}

	var token string
	if enabled {
		secretARN, err := env.Require("PRETIX_SECRET_ARN")
		if err != nil {
			return nil, err
		}
		var secret pretixSecret
		if err := reader.GetSecretJSON(ctx, secretARN, &secret); err != nil {
			return nil, fmt.Errorf("failed to read ticketing API token: %w", err)
		}
		token = secret.Token
	}

	client := pretix.NewClient(baseURL, token, &http.Client{Timeout: httpTimeout})
	return ordergateway.New(client, ordergateway.Config{
		BaseURL:           baseURL,
		Organizer:         organizer,
		Enabled:           enabled,
		SingleRetry:       single,
		BulkRetry:         bulk,
		Locale:            env.Default("PRETIX_LOCALE", "de"),
		GivenNamePointer:  env.Default("GIVEN_NAME_POINTER", ""),
		FamilyNamePointer: env.Default("FAMILY_NAME_POINTER", ""),
	}, logger)
}

type nextcloudSecret struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// NewIdentityProvider builds the provider named by IDENTITY_PROVIDER
func NewIdentityProvider(ctx context.Context, env Env, reader SecretReader, cfg aws.Config) (identity.Provider, error) {
	switch kind := env.Default("IDENTITY_PROVIDER", "nextcloud"); kind {
	case "nextcloud":
		baseURL, err := env.Require("NEXTCLOUD_URL")
		if err != nil {
			return nil, err
		}
		secretARN, err := env.Require("NEXTCLOUD_SECRET_ARN")
		if err != nil {
			return nil, err
		}
		var secret nextcloudSecret
		if err := reader.GetSecretJSON(ctx, secretARN, &secret); err != nil {
			return nil, fmt.Errorf("failed to read Nextcloud credentials: %w", err)
		}
		return identity.NewNextcloudProvider(identity.NextcloudConfig{
			BaseURL:      baseURL,
			User:         secret.User,
			Password:     secret.Password,
			DefaultGroup: env.Default("NEXTCLOUD_DEFAULT_GROUP", ""),
		}, &http.Client{Timeout: httpTimeout}), nil
	case "cognito":
		userPoolID, err := env.Require("USER_POOL_ID")
		if err != nil {
			return nil, err
		}
		return identity.NewCognitoProvider(cognitoidentityprovider.NewFromConfig(cfg), userPoolID), nil
	default:
		return nil, fmt.Errorf("unknown IDENTITY_PROVIDER %q", kind)
	}
}

type signalSecret struct {
	User       string   `json:"user"`
	Password   string   `json:"password"`
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
}

// NewNotifier builds the notifier from the channels enabled by
// NOTIFY_MAIL_ENABLED and NOTIFY_SIGNAL_ENABLED
func NewNotifier(ctx context.Context, env Env, reader SecretReader, cfg aws.Config, logger *slog.Logger) (*notify.Notifier, error) {
	var channels []notify.Channel

	mailEnabled, err := env.Bool("NOTIFY_MAIL_ENABLED", false)
	if err != nil {
		return nil, err
	}
	if mailEnabled {
		topicARN, err := env.Require("ADMIN_TOPIC_ARN")
		if err != nil {
			return nil, err
		}
		channels = append(channels, notify.NewSNSChannel(sns.NewFromConfig(cfg), topicARN))
	}

	signalEnabled, err := env.Bool("NOTIFY_SIGNAL_ENABLED", false)
	if err != nil {
		return nil, err
	}
	if signalEnabled {
		address, err := env.Require("SIGNAL_URL")
		if err != nil {
			return nil, err
		}
		secretARN, err := env.Require("SIGNAL_SECRET_ARN")
		if err != nil {
			return nil, err
		}
		var secret signalSecret
		if err := reader.GetSecretJSON(ctx, secretARN, &secret); err != nil {
			return nil, fmt.Errorf("failed to read Signal credentials: %w", err)
		}
		channels = append(channels, notify.NewSignalChannel(notify.SignalConfig{
			Address:    address,
			User:       secret.User,
			Password:   secret.Password,
			Sender:     secret.Sender,
			Recipients: secret.Recipients,
		}, &http.Client{Timeout: httpTimeout}))
	}

	return notify.New(logger, channels...), nil
}
