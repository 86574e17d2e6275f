package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	idMu            sync.Mutex
	lastTicketToken int64
)

// NewTicketID mints a ticket ID of the form TKT-<millisecond token>. The
// token is bumped past the previous one when two tickets land in the same
// millisecond, so IDs stay unique within a process and keep rough creation
// order across restarts.
func NewTicketID() string {
	idMu.Lock()
	defer idMu.Unlock()
	token := time.Now().UnixMilli()
	if token <= lastTicketToken {
		token = lastTicketToken + 1
	}
	lastTicketToken = token
	return fmt.Sprintf("TKT-%d", token)
}

// NewCommentID mints a comment ID of the form CMT-<millis>-<random suffix>.
func NewCommentID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("CMT-%d-%s", time.Now().UnixMilli(), suffix)
}

// NewAPIKeySecret mints an stk_-prefixed secret token.
func NewAPIKeySecret() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// uuid rather than returning a guessable token.
		return "stk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return "stk_" + hex.EncodeToString(buf)
}
