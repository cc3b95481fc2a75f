// Package schema fetches credential-type schema documents from
// content-addressed or HTTP locations.
package schema

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"golang.org/x/crypto/sha3"

	dErrors "signet/pkg/domain-errors"
)

const maxSchemaBytes = 1 << 20 // 1 MiB

// Schema is a fetched credential-type schema document.
type Schema struct {
	URI         string
	Content     []byte
	ContentType string
	// Hash is the first 16 bytes of keccak256(Content), hex-encoded. It is
	// part of the core claim's value preimage.
	Hash string
}

// Cache stores schema documents fetched from immutable (content-addressed)
// locations. HTTP-sourced schemas are never cached.
type Cache interface {
	Get(ctx context.Context, uri string) ([]byte, bool)
	Set(ctx context.Context, uri string, content []byte)
}

// Resolver dispatches on URI scheme: ipfs via a gateway, http(s) directly.
// It performs no retries; retry policy belongs to the caller.
type Resolver struct {
	gateway string
	client  *http.Client
	cache   Cache
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithCache enables caching of content-addressed schemas.
func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// NewResolver builds a resolver fetching ipfs URIs through the given
// gateway base URL.
func NewResolver(gateway string, opts ...Option) *Resolver {
	r := &Resolver{
		gateway: strings.TrimRight(gateway, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches the schema document behind a URI. Unknown schemes and
// fetch failures are schema errors.
func (r *Resolver) Resolve(ctx context.Context, schemaURI string) (Schema, error) {
	parsed, err := url.Parse(schemaURI)
	if err != nil {
		return Schema{}, dErrors.Newf(dErrors.CodeSchema, "invalid schema URI %q", schemaURI)
	}

	switch parsed.Scheme {
	case "ipfs":
		return r.resolveIPFS(ctx, schemaURI)
	case "http", "https":
		return r.fetch(ctx, schemaURI, schemaURI, false)
	default:
		return Schema{}, dErrors.Newf(dErrors.CodeSchema, "unsupported schema URI scheme %q", parsed.Scheme)
	}
}

func (r *Resolver) resolveIPFS(ctx context.Context, schemaURI string) (Schema, error) {
	// CIDs are case-sensitive; url.Parse lowercases the host segment, so
	// the identifier is cut from the raw URI instead.
	contentID := strings.TrimPrefix(schemaURI, "ipfs://")
	contentID = strings.Trim(contentID, "/")
	if contentID == "" {
		return Schema{}, dErrors.Newf(dErrors.CodeSchema, "schema URI %q has no content identifier", schemaURI)
	}

	// Only canonical CIDs are provably immutable; anything else is fetched
	// through the gateway but never cached.
	_, cidErr := cid.Decode(contentID)
	cacheable := cidErr == nil

	if cacheable && r.cache != nil {
		if content, ok := r.cache.Get(ctx, schemaURI); ok {
			return newSchema(schemaURI, content, "application/json"), nil
		}
	}

	s, err := r.fetch(ctx, schemaURI, r.gateway+"/ipfs/"+contentID, true)
	if err != nil {
		return Schema{}, err
	}
	if cacheable && r.cache != nil {
		r.cache.Set(ctx, schemaURI, s.Content)
	}
	return s, nil
}

func (r *Resolver) fetch(ctx context.Context, schemaURI, fetchURL string, viaGateway bool) (Schema, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return Schema{}, dErrors.Wrap(err, dErrors.CodeSchema, "build schema request")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		source := "schema"
		if viaGateway {
			source = "gateway"
		}
		return Schema{}, dErrors.Wrap(err, dErrors.CodeSchema, fmt.Sprintf("fetch %s from %s", source, fetchURL))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Schema{}, dErrors.Newf(dErrors.CodeSchema, "schema fetch %s returned status %d", schemaURI, resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxSchemaBytes+1))
	if err != nil {
		return Schema{}, dErrors.Wrap(err, dErrors.CodeSchema, "read schema body")
	}
	if len(content) > maxSchemaBytes {
		return Schema{}, dErrors.Newf(dErrors.CodeSchema, "schema %s exceeds %d bytes", schemaURI, maxSchemaBytes)
	}
	if len(content) == 0 {
		return Schema{}, dErrors.Newf(dErrors.CodeSchema, "schema %s is empty", schemaURI)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	return newSchema(schemaURI, content, contentType), nil
}

func newSchema(uri string, content []byte, contentType string) Schema {
	return Schema{
		URI:         uri,
		Content:     content,
		ContentType: contentType,
		Hash:        HashContent(content),
	}
}

// HashContent derives the 16-byte schema hash committed into core claims.
func HashContent(content []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil)[:16])
}
