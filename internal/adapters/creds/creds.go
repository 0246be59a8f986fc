// Package creds extracts the producer connection parameters shared by the
// media, control and HTTP endpoints. Headers take precedence over query
// parameters.
package creds

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// SessionID reads the target session from the session-id header or the
// session/sessionId query parameters.
func SessionID(c *gin.Context) string {
	if v := c.GetHeader("session-id"); v != "" {
		return v
	}
	if v := c.Query("session"); v != "" {
		return v
	}
	return c.Query("sessionId")
}

// StreamKey reads the shared secret from Authorization: Bearer or the
// key/streamKey query parameters.
func StreamKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	if v := c.Query("key"); v != "" {
		return v
	}
	return c.Query("streamKey")
}

// IsPublic reads the visibility flag; "false" is the only value that makes a
// session private, anything else including absence means public.
func IsPublic(c *gin.Context) bool {
	return c.GetHeader("is-public") != "false"
}

// InteractionPassword reads the optional secret gating viewer actions.
func InteractionPassword(c *gin.Context) string {
	return c.GetHeader("x-interaction-password")
}
