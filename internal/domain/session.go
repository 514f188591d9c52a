package domain

import "time"

// Tokens replica el payload del token endpoint que guardamos en la sesión.
type Tokens struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type Session struct {
	User    User      `json:"user"`
	Tokens  Tokens    `json:"tokens"`
	Expires time.Time `json:"expires"`
}
