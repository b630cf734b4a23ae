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
	defaultRangeURL = "https://api.pwnedpasswords.com/range/"
	breachUserAgent = "keyrecovery/0.1"
)

// BreachResult reports whether a password appears in the Pwned Passwords corpus.
type BreachResult struct {
	Found bool
	Count int
}

// BreachChecker queries the HIBP range API using k-anonymity: only the first
// five hex characters of SHA1(pw) leave the process.
//
// It is deliberately not a Rule. Policy rules are pure, this needs the network,
// so callers run it next to the policy (the CLI does so on --check-breach).
type BreachChecker struct {
	Client   *http.Client
	RangeURL string
}

// NewBreachChecker returns a checker with a short request timeout.
func NewBreachChecker() *BreachChecker {
	return &BreachChecker{
		Client:   &http.Client{Timeout: 4 * time.Second},
		RangeURL: defaultRangeURL,
	}
}

// Check looks pw up. Network and HTTP errors are wrapped and returned; the
// caller decides whether to fail open or closed.
func (c *BreachChecker) Check(ctx context.Context, pw string) (BreachResult, error) {
	var result BreachResult

	sum := sha1.Sum([]byte(pw))
	hashHex := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := hashHex[:5], hashHex[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RangeURL+prefix, nil)
	if err != nil {
		return result, fmt.Errorf("breach request: %w", err)
	}
	req.Header.Set("User-Agent", breachUserAgent)
	req.Header.Set("Add-Padding", "true")

	resp, err := c.Client.Do(req)
	if err != nil {
		return result, fmt.Errorf("breach query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("breach query: unexpected status %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		lineSuffix, countStr, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok || !strings.EqualFold(lineSuffix, suffix) {
			continue
		}

		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			return result, fmt.Errorf("breach parse count: %w", err)
		}
		// Padding rows carry a zero count.
		if count == 0 {
			continue
		}
		result.Found = true
		result.Count = count
		return result, nil
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("breach read response: %w", err)
	}

	return result, nil
}
