package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// State tokens are the correlation keys of the bridge. Format:
// 32 lowercase hex characters (128 bits of crypto/rand entropy) followed by
// an underscore and the creation time in Unix milliseconds. The embedded
// timestamp lets any holder judge staleness without a store lookup.
const stateNonceBytes = 16

// stateTokenPattern is the single canonical grammar. Anything else is
// rejected; there are no lenient fallbacks.
var stateTokenPattern = regexp.MustCompile(`^[0-9a-f]{32}_[0-9]{1,16}$`)

// StateToken is a parsed state token.
type StateToken struct {
	// Nonce is the random hex component.
	Nonce string

	// IssuedAt is the creation time embedded in the token.
	IssuedAt time.Time
}

// Age returns how long ago the token was issued.
func (t StateToken) Age() time.Duration {
	return time.Since(t.IssuedAt)
}

// NewStateToken generates a fresh state token.
func NewStateToken() (string, error) {
	buf := make([]byte, stateNonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state nonce: %w", err)
	}
	return hex.EncodeToString(buf) + "_" + strconv.FormatInt(time.Now().UnixMilli(), 10), nil
}

// ParseStateToken validates s against the canonical grammar and extracts
// the embedded components. Returns ErrInvalidState for anything that does
// not match.
func ParseStateToken(s string) (StateToken, error) {
	if !stateTokenPattern.MatchString(s) {
		return StateToken{}, ErrInvalidState
	}
	nonce, millis, _ := strings.Cut(s, "_")
	ts, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return StateToken{}, ErrInvalidState
	}
	return StateToken{
		Nonce:    nonce,
		IssuedAt: time.UnixMilli(ts),
	}, nil
}

// ValidStateToken reports whether s matches the canonical grammar.
func ValidStateToken(s string) bool {
	return stateTokenPattern.MatchString(s)
}
