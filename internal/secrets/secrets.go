// Package secrets reads cold-start configuration from Secrets Manager and
// SSM Parameter Store.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SecretsManagerClient is the interface for Secrets Manager operations
type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SSMClient is the interface for SSM operations
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Reader reads secrets and parameters
type Reader struct {
	secrets SecretsManagerClient
	params  SSMClient
}

// NewReader creates a new Reader. Either client may be nil when the caller
// does not need it.
func NewReader(secrets SecretsManagerClient, params SSMClient) *Reader {
	return &Reader{secrets: secrets, params: params}
}

// GetSecretString retrieves a secret's string value
func (r *Reader) GetSecretString(ctx context.Context, secretARN string) (string, error) {
	result, err := r.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return "", err
	}

	if result.SecretString == nil {
		return "", fmt.Errorf("secret value is empty")
	}

	return *result.SecretString, nil
}

// GetSecretJSON retrieves a JSON secret and decodes it into out
func (r *Reader) GetSecretJSON(ctx context.Context, secretARN string, out any) error {
	value, err := r.GetSecretString(ctx, secretARN)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return fmt.Errorf("secret %s is not valid JSON: %w", secretARN, err)
	}
	return nil
}

// GetParameter retrieves a parameter from SSM
func (r *Reader) GetParameter(ctx context.Context, name string) (string, error) {
	result, err := r.params.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter value is empty")
	}

	return *result.Parameter.Value, nil
}

// GetBoolParameter retrieves a parameter and parses it as a boolean
func (r *Reader) GetBoolParameter(ctx context.Context, name string) (bool, error) {
	value, err := r.GetParameter(ctx, name)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parameter %s is not a boolean: %w", name, err)
	}
	return b, nil
}
