package utils

import (
	"crypto/rand"
	"os"
	"time"

	"github.com/kataras/iris/v12/middleware/jwt"
)

type AccessToken struct {
	ID   uint   `json:"ID"`
	Role string `json:"role"`
}

// CreateAccessToken signs an operator access token for the admin surface.
func CreateAccessToken(id uint, role string) (string, error) {
	signer := jwt.NewSigner(jwt.HS256, os.Getenv("ACCESS_TOKEN_SECRET"), 24*time.Hour)

	token, err := signer.Sign(AccessToken{ID: id, Role: role})
	if err != nil {
		return "", err
	}
	return string(token), nil
}

// GenerateShortToken returns a random uppercase-hex string of length n*2.
func GenerateShortToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	const hex = "0123456789ABCDEF"
	out := make([]byte, n*2)
	for i, v := range b {
		out[i*2] = hex[v>>4]
		out[i*2+1] = hex[v&0x0f]
	}
	return string(out), nil
}
