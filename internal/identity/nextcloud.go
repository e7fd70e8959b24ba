package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	ocsUsersPath = "/ocs/v1.php/cloud/users"
	ocsStatusOK  = 100
)

// OCSError is a non-success reply from the OCS provisioning API
type OCSError struct {
	HTTPStatus int
	StatusCode int
	Message    string
}

func (e *OCSError) Error() string {
	return fmt.Sprintf("OCS request failed: http %d, ocs %d: %s", e.HTTPStatus, e.StatusCode, e.Message)
}

// NextcloudConfig holds the admin credentials for the provisioning API
type NextcloudConfig struct {
	BaseURL      string
	User         string
	Password     string
	DefaultGroup string // Optional group every new account joins
}

// NextcloudProvider implements Provider using the OCS provisioning API
type NextcloudProvider struct {
	cfg        NextcloudConfig
	httpClient *http.Client
}

// NewNextcloudProvider creates a new NextcloudProvider
func NewNextcloudProvider(cfg NextcloudConfig, httpClient *http.Client) *NextcloudProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &NextcloudProvider{cfg: cfg, httpClient: httpClient}
}

type ocsMeta struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statuscode"`
	Message    string `json:"message"`
}

type ocsEnvelope struct {
	OCS struct {
		Meta ocsMeta         `json:"meta"`
		Data json.RawMessage `json:"data"`
	} `json:"ocs"`
}

// ListIdentities lists every user and looks up each user's email
func (p *NextcloudProvider) ListIdentities(ctx context.Context) (map[string]string, error) {
	var list struct {
		Users []string `json:"users"`
	}
	if err := p.do(ctx, http.MethodGet, ocsUsersPath, nil, &list); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	identities := make(map[string]string, len(list.Users))
	for _, user := range list.Users {
		var details struct {
			Email *string `json:"email"`
		}
		if err := p.do(ctx, http.MethodGet, ocsUsersPath+"/"+url.PathEscape(user), nil, &details); err != nil {
			return nil, fmt.Errorf("failed to get user %s: %w", user, err)
		}
		email := ""
		if details.Email != nil {
			email = *details.Email
		}
		identities[user] = email
	}
	return identities, nil
}

// CreateAccount creates the user and adds it to the default group, if any.
// The platform mails the new user a link to set a password.
func (p *NextcloudProvider) CreateAccount(ctx context.Context, account Account) error {
	form := url.Values{}
	form.Set("userid", account.Username)
	form.Set("email", account.Email)
	form.Set("displayName", strings.TrimSpace(account.GivenName+" "+account.FamilyName))
	if p.cfg.DefaultGroup != "" {
		form.Add("groups[]", p.cfg.DefaultGroup)
	}

	if err := p.do(ctx, http.MethodPost, ocsUsersPath, form, nil); err != nil {
		return fmt.Errorf("failed to create user %s: %w", account.Username, err)
	}
	return nil
}

func (p *NextcloudProvider) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path+"?format=json", body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(p.cfg.User, p.cfg.Password)
	req.Header.Set("OCS-APIRequest", "true")
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope ocsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &OCSError{HTTPStatus: resp.StatusCode, Message: "undecodable response: " + err.Error()}
	}

	meta := envelope.OCS.Meta
	if resp.StatusCode >= 300 || meta.StatusCode != ocsStatusOK {
		return &OCSError{HTTPStatus: resp.StatusCode, StatusCode: meta.StatusCode, Message: meta.Message}
	}

	if out != nil && len(envelope.OCS.Data) > 0 {
		if err := json.Unmarshal(envelope.OCS.Data, out); err != nil {
			return fmt.Errorf("failed to decode OCS data: %w", err)
		}
	}
	return nil
}
