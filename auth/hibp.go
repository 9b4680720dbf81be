package auth

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	hibpRangeURL  = "https://api.pwnedpasswords.com/range/"
	hibpUserAgent = "securevault/0.1"
)

// HIBPResult captures whether a password hash suffix was found in the HIBP dataset.
type HIBPResult struct {
	Found bool
	Count int
}

// BreachChecker queries the Have I Been Pwned range API using k-anonymity.
// The zero value talks to the public endpoint with a short timeout.
type BreachChecker struct {
	Client    *http.Client
	BaseURL   string
	UserAgent string
}

// NewBreachChecker returns a checker for the public endpoint.
func NewBreachChecker() *BreachChecker {
	return &BreachChecker{
		Client:    &http.Client{Timeout: 4 * time.Second},
		BaseURL:   hibpRangeURL,
		UserAgent: hibpUserAgent,
	}
}

// Check never sends the password; only the first 5 hex chars of SHA1(pw)
// leave the process. Network and HTTP failures are returned wrapped and the
// caller decides whether to fail open or closed.
func (b *BreachChecker) Check(ctx context.Context, pw string) (HIBPResult, error) {
	var result HIBPResult

	sum := sha1.Sum([]byte(pw))
	hashHex := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix := hashHex[:5]
	suffix := hashHex[5:]

	base := b.BaseURL
	if base == "" {
		base = hibpRangeURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	ua := b.UserAgent
	if ua == "" {
		ua = hibpUserAgent
	}
	client := b.Client
	if client == nil {
		client = &http.Client{Timeout: 4 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+prefix, nil)
	if err != nil {
		return result, fmt.Errorf("hibp request: %w", err)
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Add-Padding", "true")

	resp, err := client.Do(req)
	if err != nil {
		return result, fmt.Errorf("hibp query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("hibp query: unexpected status %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineSuffix, countStr, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(lineSuffix, suffix) {
			continue
		}

		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			return result, fmt.Errorf("hibp parse count: %w", err)
		}
		// Padding entries carry a zero count.
		if count == 0 {
			continue
		}

		result.Found = true
		result.Count = count
		return result, nil
	}

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("hibp read response: %w", err)
	}

	return result, nil
}

// CheckHIBP runs Check against the public endpoint.
func CheckHIBP(ctx context.Context, pw string) (HIBPResult, error) {
	return NewBreachChecker().Check(ctx, pw)
}
