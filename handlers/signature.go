package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"attendance-backend/attendance"
	"attendance-backend/auth"
)

// Request headers carrying the wallet signature. The client signs
// auth.Message(domain, action, checksummedAddress, timestamp, body) with personal_sign.
const (
	HeaderAddress   = "X-Wallet-Address"
	HeaderTimestamp = "X-Wallet-Timestamp"
	HeaderSignature = "X-Wallet-Signature"
)

const callerKey = "attendance.caller"

// Signatures builds callers from signed request headers.
type Signatures struct {
	domain  string
	maxSkew time.Duration
	now     func() time.Time
}

// NewSignatures accepts signatures made for domain only, so a signature for one
// deployment is not valid on another.
func NewSignatures(domain string, maxSkew time.Duration) *Signatures {
	return &Signatures{domain: domain, maxSkew: maxSkew, now: time.Now}
}

// Require parses the signature headers for action and stores the caller in the context.
// The signature itself is checked by the manager when the operation needs it.
func (s *Signatures) Require(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr, err := auth.NormalizeAddress(c.GetHeader(HeaderAddress))
		if err != nil {
			abortUnauthenticated(c, "Missing or invalid wallet address")
			return
		}

		ts, err := strconv.ParseInt(c.GetHeader(HeaderTimestamp), 10, 64)
		if err != nil {
			abortUnauthenticated(c, "Missing or invalid signature timestamp")
			return
		}
		skew := s.now().Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > s.maxSkew {
			logger.Warningf("Rejected %s from %s: timestamp %d outside allowed skew", action, addr, ts)
			abortUnauthenticated(c, "Signature timestamp expired")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "Failed to read request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		caller, err := auth.NewSignedCaller(addr, auth.Message(s.domain, action, addr, ts, body), c.GetHeader(HeaderSignature))
		if err != nil {
			abortUnauthenticated(c, "Missing or invalid signature")
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"code":    attendance.CodeAuthenticationFailed,
		"message": message,
	})
}

func callerFrom(c *gin.Context) attendance.Caller {
	v, _ := c.Get(callerKey)
	caller, _ := v.(attendance.Caller)
	return caller
}
