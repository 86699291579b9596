package models

// ClientSecrets is the OAuth client file downloaded from the provider console.
type ClientSecrets struct {
	Installed *OAuthClient `json:"installed,omitempty"`
	Web       *OAuthClient `json:"web,omitempty"`
}

// OAuthClient describes one registered OAuth client.
type OAuthClient struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}

// Client returns the installed client, falling back to the web client.
func (c *ClientSecrets) Client() *OAuthClient {
	if c.Installed != nil {
		return c.Installed
	}
	return c.Web
}
