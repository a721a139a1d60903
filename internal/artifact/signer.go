package artifact

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "leadcrm/pkg/domain-errors"
)

// DownloadClaims are the JWT claims embedded in a signed download link.
type DownloadClaims struct {
	ArtifactID string `json:"artifact_id"`
	Subject    string `json:"subject"`
	jwt.RegisteredClaims
}

// URLSigner issues and validates signed, expiring download URLs. The token
// expiry mirrors the artifact expiry, so a leaked link is useless once the
// export window closes.
type URLSigner struct {
	signingKey []byte
	baseURL    string
	issuer     string
}

func NewURLSigner(signingKey, baseURL string) *URLSigner {
	return &URLSigner{
		signingKey: []byte(signingKey),
		baseURL:    baseURL,
		issuer:     "leadcrm-privacy",
	}
}

// SignedURL builds a download URL whose token expires with the artifact.
func (s *URLSigner) SignedURL(a *Artifact) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, DownloadClaims{
		ArtifactID: a.ID,
		Subject:    a.Subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(a.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        a.RequestID,
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign download token: %w", err)
	}
	return fmt.Sprintf("%s/v1/privacy/exports/download?token=%s", s.baseURL, url.QueryEscape(signed)), nil
}

// Validate checks a download token and returns its claims. Expired tokens
// surface as CodeUnauthorized so handlers can answer 401 instead of 500.
func (s *URLSigner) Validate(tokenString string) (*DownloadClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "empty download token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &DownloadClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "download link expired")
		}
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid download token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid download token")
	}

	claims, ok := parsed.Claims.(*DownloadClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid download token claims")
	}
	if claims.Issuer != s.issuer {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid download token issuer")
	}
	return claims, nil
}
