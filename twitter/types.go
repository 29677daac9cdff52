package twitter

// AuthRequest is the ephemeral state for one authorization attempt. It is
// issued by the initiator and must be validated and discarded on callback.
type AuthRequest struct {
	State        string `json:"state"`
	PkceVerifier string `json:"pkce_verifier"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
}

// Profile is the identity as reported by the provider. Fetched fresh on each
// callback, never cached.
type Profile struct {
	Id              string         `json:"id"`
	Name            string         `json:"name"`
	Username        string         `json:"username"`
	ConfirmedEmail  string         `json:"confirmed_email,omitempty"`
	ProfileImageUrl string         `json:"profile_image_url,omitempty"`
	PublicMetrics   *PublicMetrics `json:"public_metrics,omitempty"`
}

type PublicMetrics struct {
	FollowersCount int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
	TweetCount     int `json:"tweet_count"`
	ListedCount    int `json:"listed_count"`
}

type profileEnvelope struct {
	Data Profile `json:"data"`
}
