// Package credential generates pass identifiers and verification tokens and
// encodes the credential payload.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gatepass/internal/guestpass/models"
	"gatepass/pkg/domain"
)

// passIDAlphabet excludes ambiguous characters so gate staff can read an id
// aloud over radio if scanning fails.
const passIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewPassID generates the public pass identifier: a "GP-" prefix, the
// issuance instant in milliseconds and a short random suffix. URL- and
// QR-safe, unique under concurrent issuance.
func NewPassID(now time.Time) (domain.PassID, error) {
	suffix, err := randomString(5)
	if err != nil {
		return "", fmt.Errorf("generate pass id: %w", err)
	}
	return domain.PassID(fmt.Sprintf("GP-%d-%s", now.UnixMilli(), suffix)), nil
}

// NewVerificationToken generates the opaque single-use secret embedded in the
// credential payload: 32 bytes of crypto/rand, base64url without padding.
func NewVerificationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Payload builds the wire document embedded in the scannable artifact.
// Timestamps are ISO-8601 in UTC, a contract with the scanner application.
func Payload(pass *models.GuestPass) models.CredentialPayload {
	return models.CredentialPayload{
		PassID:            pass.ID.String(),
		ProjectID:         pass.ProjectID.String(),
		GuestName:         pass.GuestName,
		ValidUntil:        pass.ValidUntil.UTC().Format(time.RFC3339),
		CreatedAt:         pass.CreatedAt.UTC().Format(time.RFC3339),
		VerificationToken: pass.VerificationToken,
	}
}

// Encode serializes a payload for the renderer collaborator.
func Encode(payload models.CredentialPayload) ([]byte, error) {
	return json.Marshal(payload)
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, c := range buf {
		b.WriteByte(passIDAlphabet[int(c)%len(passIDAlphabet)])
	}
	return b.String(), nil
}
