// Package signing produces request signatures for the affiliate APIs.
//
// The upstream verifies a digest over a canonical rendering of the request
// parameters. Any deviation (ordering, case, missing secret wrap) is rejected
// upstream with a generic auth error, so the canonical form is fixed here and
// pinned by regression vectors in the tests.
package signing

import (
	"crypto/hmac"
	"crypto/md5"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Algorithm selects the digest scheme expected by the upstream.
type Algorithm string

const (
	MD5     Algorithm = "md5"
	HMACMD5 Algorithm = "hmac-md5"
)

// ErrUnsupportedAlgorithm is returned for any algorithm other than md5 or
// hmac-md5.
var ErrUnsupportedAlgorithm = errors.New("signing: unsupported algorithm")

// Sign computes the uppercase hex digest for params under secret.
//
// Params must not contain the signature parameter itself. Keys are sorted
// byte-wise (not by insertion order) and concatenated as
// secret + k1 + v1 + ... + kN + vN + secret with no separators.
func Sign(params map[string]string, secret string, algo Algorithm) (string, error) {
	switch algo {
	case MD5, HMACMD5:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algo)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(secret)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}
	b.WriteString(secret)

	if algo == HMACMD5 {
		mac := hmac.New(md5.New, []byte(secret))
		mac.Write([]byte(b.String()))
		return fmt.Sprintf("%X", mac.Sum(nil)), nil
	}
	sum := md5.Sum([]byte(b.String()))
	return fmt.Sprintf("%X", sum[:]), nil
}
