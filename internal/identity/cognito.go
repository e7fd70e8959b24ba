package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// CognitoClient is the subset of the Cognito API the provider uses
type CognitoClient interface {
	cognitoidentityprovider.ListUsersAPIClient
	AdminCreateUser(ctx context.Context, params *cognitoidentityprovider.AdminCreateUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminCreateUserOutput, error)
}

// CognitoProvider implements Provider using a Cognito user pool
type CognitoProvider struct {
	client     CognitoClient
	userPoolID string
}

// NewCognitoProvider creates a new CognitoProvider
func NewCognitoProvider(client CognitoClient, userPoolID string) *CognitoProvider {
	return &CognitoProvider{client: client, userPoolID: userPoolID}
}

// ListIdentities pages through every user in the pool
func (p *CognitoProvider) ListIdentities(ctx context.Context) (map[string]string, error) {
	identities := make(map[string]string)

	paginator := cognitoidentityprovider.NewListUsersPaginator(p.client, &cognitoidentityprovider.ListUsersInput{
		UserPoolId:      aws.String(p.userPoolID),
		AttributesToGet: []string{"email"},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		for _, user := range page.Users {
			if user.Username == nil {
				continue
			}
			identities[*user.Username] = attributeValue(user.Attributes, "email")
		}
	}

	return identities, nil
}

// CreateAccount creates the user; Cognito sends the invitation mail
func (p *CognitoProvider) CreateAccount(ctx context.Context, account Account) error {
	_, err := p.client.AdminCreateUser(ctx, &cognitoidentityprovider.AdminCreateUserInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(account.Username),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(account.Email)},
			{Name: aws.String("email_verified"), Value: aws.String("true")},
			{Name: aws.String("given_name"), Value: aws.String(account.GivenName)},
			{Name: aws.String("family_name"), Value: aws.String(account.FamilyName)},
		},
		DesiredDeliveryMediums: []types.DeliveryMediumType{types.DeliveryMediumTypeEmail},
	})
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", account.Username, err)
	}
	return nil
}

func attributeValue(attrs []types.AttributeType, name string) string {
	for _, attr := range attrs {
		if attr.Name != nil && *attr.Name == name && attr.Value != nil {
			return *attr.Value
		}
	}
	return ""
}
