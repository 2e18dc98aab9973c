package cache

import (
	"net/url"
	"strings"
)

// KeyBuilder encodes a resource plus its query parameters into a cache key.
// Parameters are sorted and escaped so two distinct queries never share a key.
type KeyBuilder struct {
	resource string
	params   url.Values
}

// NewKey starts a key for resource, e.g. "approvals:briefs".
func NewKey(resource string) *KeyBuilder {
	return &KeyBuilder{resource: resource, params: url.Values{}}
}

// With adds a parameter. Empty values are kept so "a=" and a missing "a" differ.
func (b *KeyBuilder) With(name, value string) *KeyBuilder {
	b.params.Set(name, value)
	return b
}

// WithList adds a parameter whose values are joined in the given order.
func (b *KeyBuilder) WithList(name string, values []string) *KeyBuilder {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = url.QueryEscape(v)
	}
	b.params.Set(name, strings.Join(escaped, ","))
	return b
}

// String renders the key as resource?k1=v1&k2=v2.
func (b *KeyBuilder) String() string {
	if len(b.params) == 0 {
		return b.resource
	}
	return b.resource + "?" + b.params.Encode()
}

// Resource returns the part of key before the parameters, used as a metrics label.
func Resource(key string) string {
	if i := strings.IndexByte(key, '?'); i >= 0 {
		return key[:i]
	}
	return key
}
