package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func ocsReply(status int, data string) string {
	return fmt.Sprintf(`{"ocs":{"meta":{"status":"ok","statuscode":%d,"message":"OK"},"data":%s}}`, status, data)
}

func TestNextcloudListIdentities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("OCS-APIRequest") != "true" {
			t.Errorf("expected OCS-APIRequest header, got %q", r.Header.Get("OCS-APIRequest"))
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "secret" {
			t.Errorf("unexpected basic auth %q/%q", user, pass)
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("expected format=json, got %q", r.URL.RawQuery)
		}

		switch r.URL.Path {
		case "/ocs/v1.php/cloud/users":
			fmt.Fprint(w, ocsReply(100, `{"users":["kv-kraichgau-jdoe","admin"]}`))
		case "/ocs/v1.php/cloud/users/kv-kraichgau-jdoe":
			fmt.Fprint(w, ocsReply(100, `{"id":"kv-kraichgau-jdoe","email":"john@example.com"}`))
		case "/ocs/v1.php/cloud/users/admin":
			fmt.Fprint(w, ocsReply(100, `{"id":"admin","email":null}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := NewNextcloudProvider(NextcloudConfig{BaseURL: server.URL + "/", User: "admin", Password: "secret"}, server.Client())
	identities, err := provider.ListIdentities(context.Background())
	if err != nil {
		t.Fatalf("ListIdentities returned error: %v", err)
	}

	if len(identities) != 2 {
		t.Fatalf("expected 2 identities, got %v", identities)
	}
	if identities["kv-kraichgau-jdoe"] != "john@example.com" {
		t.Errorf("unexpected email %q", identities["kv-kraichgau-jdoe"])
	}
	if email, ok := identities["admin"]; !ok || email != "" {
		t.Errorf("expected admin with empty email, got %q (present=%v)", email, ok)
	}
}

func TestNextcloudCreateAccount(t *testing.T) {
	var gotMethod, gotUserID, gotEmail, gotDisplayName string
	var gotGroups []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		gotUserID = r.PostForm.Get("userid")
		gotEmail = r.PostForm.Get("email")
		gotDisplayName = r.PostForm.Get("displayName")
		gotGroups = r.PostForm["groups[]"]
		fmt.Fprint(w, ocsReply(100, `{"id":"kv-kraichgau-jdoe"}`))
	}))
	defer server.Close()

	provider := NewNextcloudProvider(NextcloudConfig{BaseURL: server.URL, User: "admin", Password: "secret", DefaultGroup: "members"}, server.Client())
	err := provider.CreateAccount(context.Background(), Account{
		Username:   "kv-kraichgau-jdoe",
		Email:      "john@example.com",
		GivenName:  "John",
		FamilyName: "Doe",
	})
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotUserID != "kv-kraichgau-jdoe" {
		t.Errorf("expected userid kv-kraichgau-jdoe, got %s", gotUserID)
	}
	if gotEmail != "john@example.com" {
		t.Errorf("expected email john@example.com, got %s", gotEmail)
	}
	if gotDisplayName != "John Doe" {
		t.Errorf("expected display name John Doe, got %s", gotDisplayName)
	}
	if len(gotGroups) != 1 || gotGroups[0] != "members" {
		t.Errorf("expected group members, got %v", gotGroups)
	}
}

func TestNextcloudCreateAccount_WithoutGroup(t *testing.T) {
	var gotGroups []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotGroups = r.PostForm["groups[]"]
		fmt.Fprint(w, ocsReply(100, `[]`))
	}))
	defer server.Close()

	provider := NewNextcloudProvider(NextcloudConfig{BaseURL: server.URL}, server.Client())
	if err := provider.CreateAccount(context.Background(), Account{Username: "x", Email: "x@example.com"}); err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	if len(gotGroups) != 0 {
		t.Errorf("expected no groups, got %v", gotGroups)
	}
}

func TestNextcloudOCSFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ocs":{"meta":{"status":"failure","statuscode":102,"message":"User already exists"},"data":[]}}`)
	}))
	defer server.Close()

	provider := NewNextcloudProvider(NextcloudConfig{BaseURL: server.URL}, server.Client())
	err := provider.CreateAccount(context.Background(), Account{Username: "taken"})

	var ocsErr *OCSError
	if !errors.As(err, &ocsErr) {
		t.Fatalf("expected *OCSError, got %v", err)
	}
	if ocsErr.StatusCode != 102 {
		t.Errorf("expected OCS status 102, got %d", ocsErr.StatusCode)
	}
	if ocsErr.Message != "User already exists" {
		t.Errorf("unexpected message %q", ocsErr.Message)
	}
}

func TestNextcloudHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"ocs":{"meta":{"status":"failure","statuscode":997,"message":"Unauthorised"},"data":[]}}`)
	}))
	defer server.Close()

	provider := NewNextcloudProvider(NextcloudConfig{BaseURL: server.URL}, server.Client())
	_, err := provider.ListIdentities(context.Background())

	var ocsErr *OCSError
	if !errors.As(err, &ocsErr) {
		t.Fatalf("expected *OCSError, got %v", err)
	}
	if ocsErr.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("expected HTTP 401, got %d", ocsErr.HTTPStatus)
	}
}

func TestNextcloudUndecodableResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	}))
	defer server.Close()

	provider := NewNextcloudProvider(NextcloudConfig{BaseURL: server.URL}, server.Client())
	if _, err := provider.ListIdentities(context.Background()); err == nil {
		t.Fatal("expected error for HTML response, got nil")
	}
}
