package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	identityContentType  = "application/x-amz-json-1.1"
	identityTargetPrefix = "AWSCognitoIdentityProviderService."

	flowUserPassword = "USER_PASSWORD_AUTH"
	flowRefreshToken = "REFRESH_TOKEN_AUTH"
)

// IdentityEndpoint returns the Cognito user pool endpoint for a region
func IdentityEndpoint(region string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", region)
}

// IdentityClient talks to the identity provider's JSON protocol
type IdentityClient struct {
	Endpoint   string
	ClientID   string
	HTTPClient *http.Client
}

// NewIdentityClient creates an IdentityClient. A nil httpClient uses http.DefaultClient.
func NewIdentityClient(endpoint, clientID string, httpClient *http.Client) *IdentityClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IdentityClient{Endpoint: endpoint, ClientID: clientID, HTTPClient: httpClient}
}

type initiateAuthRequest struct {
	AuthFlow       string            `json:"AuthFlow"`
	ClientID       string            `json:"ClientId"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

type initiateAuthResponse struct {
	AuthenticationResult *struct {
		AccessToken  string `json:"AccessToken"`
		IDToken      string `json:"IdToken"`
		RefreshToken string `json:"RefreshToken"`
	} `json:"AuthenticationResult"`
	ChallengeName string `json:"ChallengeName"`
}

type userAttribute struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type signUpRequest struct {
	ClientID       string          `json:"ClientId"`
	Username       string          `json:"Username"`
	Password       string          `json:"Password"`
	UserAttributes []userAttribute `json:"UserAttributes"`
}

type confirmSignUpRequest struct {
	ClientID         string `json:"ClientId"`
	Username         string `json:"Username"`
	ConfirmationCode string `json:"ConfirmationCode"`
}

// identityErrorBody covers both casings the provider uses for its message
type identityErrorBody struct {
	Type         string `json:"__type"`
	Message      string `json:"message"`
	MessageUpper string `json:"Message"`
}

// Login exchanges email and password for a full token set
func (c *IdentityClient) Login(ctx context.Context, email, password string) (TokenSet, error) {
	tokens, err := c.initiateAuth(ctx, flowUserPassword, map[string]string{
		"USERNAME": email,
		"PASSWORD": password,
	})
	if err != nil {
		return TokenSet{}, err
	}
	if tokens.RefreshToken == "" {
		return TokenSet{}, &AuthError{Action: "InitiateAuth", Message: "identity provider returned no refresh token"}
	}
	return tokens, nil
}

// Refresh mints new access and ID tokens. The refresh token is not rotated,
// so the returned RefreshToken is always empty.
func (c *IdentityClient) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	tokens, err := c.initiateAuth(ctx, flowRefreshToken, map[string]string{
		"REFRESH_TOKEN": refreshToken,
	})
	if err != nil {
		return TokenSet{}, err
	}
	tokens.RefreshToken = ""
	return tokens, nil
}

// SignUp registers a pending, unverified account
func (c *IdentityClient) SignUp(ctx context.Context, name, email, password string) error {
	return c.request(ctx, "SignUp", signUpRequest{
		ClientID: c.ClientID,
		Username: email,
		Password: password,
		UserAttributes: []userAttribute{
			{Name: "email", Value: email},
			{Name: "name", Value: name},
		},
	}, nil)
}

// ConfirmSignUp activates an account with the emailed verification code
func (c *IdentityClient) ConfirmSignUp(ctx context.Context, email, code string) error {
	return c.request(ctx, "ConfirmSignUp", confirmSignUpRequest{
		ClientID:         c.ClientID,
		Username:         email,
		ConfirmationCode: code,
	}, nil)
}

func (c *IdentityClient) initiateAuth(ctx context.Context, flow string, params map[string]string) (TokenSet, error) {
	var resp initiateAuthResponse
	err := c.request(ctx, "InitiateAuth", initiateAuthRequest{
		AuthFlow:       flow,
		ClientID:       c.ClientID,
		AuthParameters: params,
	}, &resp)
	if err != nil {
		return TokenSet{}, err
	}

	if resp.AuthenticationResult == nil {
		if resp.ChallengeName != "" {
			return TokenSet{}, &AuthError{
				Action:  "InitiateAuth",
				Code:    resp.ChallengeName,
				Message: fmt.Sprintf("sign-in requires an unsupported challenge: %s", resp.ChallengeName),
			}
		}
		return TokenSet{}, &AuthError{Action: "InitiateAuth", Message: "identity provider returned no tokens"}
	}

	result := resp.AuthenticationResult
	if result.AccessToken == "" || result.IDToken == "" {
		return TokenSet{}, &AuthError{Action: "InitiateAuth", Message: "identity provider returned incomplete tokens"}
	}
	return TokenSet{
		AccessToken:  result.AccessToken,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
	}, nil
}

// request performs one action call. Non-2xx replies become *AuthError.
func (c *IdentityClient) request(ctx context.Context, action string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", identityContentType)
	req.Header.Set("X-Amz-Target", identityTargetPrefix+action)

	LogDebug("identity %s -> %s", action, c.Endpoint)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", action, err)
	}
	LogDebug("identity %s <- %d", action, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseIdentityError(action, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", action, err)
	}
	return nil
}

func parseIdentityError(action string, body []byte) *AuthError {
	var e identityErrorBody
	_ = json.Unmarshal(body, &e)
	return &AuthError{
		Action:  action,
		Code:    e.Type,
		Message: firstNonEmpty(e.Message, e.MessageUpper, e.Type, "Cognito request failed"),
	}
}
