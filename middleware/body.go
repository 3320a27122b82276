package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	goAccount "github.com/MrEthical07/goAccount"
)

const maxTokenBody = 16 << 10

type tokenBody struct {
	Token string `json:"token"`
}

// RefreshTokenFromBody reads a refresh token posted as {"token": "..."}.
// A missing or unreadable token wraps goAccount.ErrTokenInvalid.
func RefreshTokenFromBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", fmt.Errorf("%w: token required", goAccount.ErrTokenInvalid)
	}
	var body tokenBody
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTokenBody)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode body: %v", goAccount.ErrTokenInvalid, err)
	}
	token := strings.TrimSpace(body.Token)
	if token == "" {
		return "", fmt.Errorf("%w: token required", goAccount.ErrTokenInvalid)
	}
	return token, nil
}
