package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/saeid-a/ConsultBack/pkg/utils"
)

func TestDevtokenPrintsValidToken(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--user", "42", "--role", "doctor", "--secret", "s3cret", "--ttl", "1h"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	claims, err := utils.ValidateToken(strings.TrimSpace(out.String()), "s3cret")
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "42" || claims.Role != "doctor" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestMintTokenValidatesInput(t *testing.T) {
	cases := []struct {
		name   string
		user   int64
		role   string
		secret string
		ttl    time.Duration
	}{
		{"missing user", 0, "patient", "s", time.Hour},
		{"bad role", 1, "admin", "s", time.Hour},
		{"no secret", 1, "patient", "", time.Hour},
		{"bad ttl", 1, "patient", "s", 0},
	}
	for _, tc := range cases {
		if _, err := mintToken(tc.user, tc.role, tc.secret, tc.ttl); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
