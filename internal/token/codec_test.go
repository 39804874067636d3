package token

import (
	"errors"
	"testing"
	"time"
)

const testAlg = "HS256"

func mintToken(t *testing.T, issuer string, iat time.Time, key string) string {
	t.Helper()
	exp := iat.Add(time.Minute)
	tok, err := Encode(Claims{Issuer: issuer, IssuedAt: &iat, ExpiresAt: &exp}, []byte(key), testAlg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return tok
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	tok := mintToken(t, "service-123", now, "shh")

	claims, err := DecodeVerified(tok, []byte("shh"), testAlg)
	if err != nil {
		t.Fatalf("DecodeVerified: %v", err)
	}
	if claims.Issuer != "service-123" {
		t.Errorf("issuer: got %q, want %q", claims.Issuer, "service-123")
	}
	if claims.IssuedAt == nil || !claims.IssuedAt.Equal(now) {
		t.Errorf("iat: got %v, want %v", claims.IssuedAt, now)
	}
	if claims.ExpiresAt == nil {
		t.Error("exp missing after round trip")
	}
}

func TestDecodeVerifiedWrongKey(t *testing.T) {
	tok := mintToken(t, "svc", time.Now(), "right-key")
	if _, err := DecodeVerified(tok, []byte("wrong-key"), testAlg); !errors.Is(err, ErrSignature) {
		t.Errorf("got %v, want ErrSignature", err)
	}
}

func TestDecodeVerifiedRejectsOtherAlgorithms(t *testing.T) {
	tok := mintToken(t, "svc", time.Now(), "key")
	// Token is HS256; verifying with HS512 as the only valid method must
	// fail uniformly.
	if _, err := DecodeVerified(tok, []byte("key"), "HS512"); !errors.Is(err, ErrSignature) {
		t.Errorf("got %v, want ErrSignature", err)
	}
}

func TestDecodeVerifiedMalformed(t *testing.T) {
	if _, err := DecodeVerified("not.a.token", []byte("key"), testAlg); !errors.Is(err, ErrSignature) {
		t.Errorf("got %v, want ErrSignature", err)
	}
}

func TestDecodeVerifiedIgnoresExpiry(t *testing.T) {
	// An expired token with a valid signature still decodes; claim windows
	// are ValidateClaims' job so the caller can report a clock error, not a
	// signature error.
	iat := time.Now().Add(-2 * time.Hour)
	tok := mintToken(t, "svc", iat, "key")
	if _, err := DecodeVerified(tok, []byte("key"), testAlg); err != nil {
		t.Errorf("DecodeVerified: %v", err)
	}
}

func TestDecodeUnverified(t *testing.T) {
	tok := mintToken(t, "svc", time.Now(), "anything")
	claims, err := DecodeUnverified(tok)
	if err != nil {
		t.Fatalf("DecodeUnverified: %v", err)
	}
	if claims.Issuer != "svc" {
		t.Errorf("issuer: got %q, want %q", claims.Issuer, "svc")
	}
}

func TestDecodeUnverifiedGarbage(t *testing.T) {
	for _, tok := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		if _, err := DecodeUnverified(tok); !errors.Is(err, ErrDecode) {
			t.Errorf("%q: got %v, want ErrDecode", tok, err)
		}
	}
}

func TestDecodeUnverifiedMissingIssuer(t *testing.T) {
	iat := time.Now()
	tok, err := Encode(Claims{IssuedAt: &iat}, []byte("key"), testAlg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := DecodeUnverified(tok); !errors.Is(err, ErrIssuer) {
		t.Errorf("got %v, want ErrIssuer", err)
	}
}

func TestEncodeUnknownAlgorithm(t *testing.T) {
	if _, err := Encode(Claims{Issuer: "x"}, []byte("key"), "XX999"); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}

func TestValidateClaimsWindow(t *testing.T) {
	now := time.Now()
	window := 60 * time.Second
	leeway := 30 * time.Second

	cases := []struct {
		name string
		iat  time.Duration // offset from now
		want error
	}{
		{"fresh", 0, nil},
		{"at past edge", -89 * time.Second, nil},
		{"at future edge", 89 * time.Second, nil},
		{"too old", -91 * time.Second, ErrClock},
		{"future dated", 91 * time.Second, ErrClock},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			iat := now.Add(tc.iat)
			err := ValidateClaims(Claims{Issuer: "svc", IssuedAt: &iat}, now, window, leeway)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidateClaimsMissingFields(t *testing.T) {
	now := time.Now()
	if err := ValidateClaims(Claims{IssuedAt: &now}, now, time.Minute, 0); !errors.Is(err, ErrIssuer) {
		t.Errorf("missing iss: got %v, want ErrIssuer", err)
	}
	if err := ValidateClaims(Claims{Issuer: "svc"}, now, time.Minute, 0); !errors.Is(err, ErrClock) {
		t.Errorf("missing iat: got %v, want ErrClock", err)
	}
}
