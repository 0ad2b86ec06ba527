// Client - routes invocations to the provider for the model's family.

package llm

import (
	"context"
	"fmt"
	"sort"
)

// Client routes Invoke calls to the provider registered for the requested
// model's family. Registration happens at construction time; the zero-value
// Client rejects every call.
type Client struct {
	providers map[Family]Provider
}

// NewClient creates an empty client. Register providers before use.
func NewClient() *Client {
	return &Client{providers: make(map[Family]Provider)}
}

// Register installs the provider for a family, replacing any previous one.
func (c *Client) Register(family Family, p Provider) *Client {
	c.providers[family] = p
	return c
}

// Invoke classifies the request's model id and delegates to the family's
// provider.
func (c *Client) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResponse, error) {
	family, err := FamilyFor(req.ModelID)
	if err != nil {
		return nil, err
	}
	p, ok := c.providers[family]
	if !ok {
		return nil, fmt.Errorf("no provider registered for family %s (model %s)", family, req.ModelID)
	}
	return p.Invoke(ctx, req)
}

// Families returns the registered families in stable order.
func (c *Client) Families() []Family {
	out := make([]Family, 0, len(c.providers))
	for f := range c.providers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Supports reports whether a provider is registered for the model's family.
func (c *Client) Supports(modelID string) bool {
	family, err := FamilyFor(modelID)
	if err != nil {
		return false
	}
	_, ok := c.providers[family]
	return ok
}
