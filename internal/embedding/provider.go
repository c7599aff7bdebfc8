// Package embedding provides sentence-embedding providers used for semantic
// similarity, plus caching and cosine helpers.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrEmptyText         = errors.New("embedding: empty text")
	ErrDimensionMismatch = errors.New("embedding: vector dimensions differ")
	ErrZeroVector        = errors.New("embedding: zero vector")
)

// Provider turns text into a fixed-length vector. Implementations must be safe
// for concurrent use.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model identifies the model and dimension, used in cache keys.
	Model() string
}

// Options selects and configures a provider.
type Options struct {
	Provider     string // hash | gemini
	Model        string
	Dim          int
	GeminiAPIKey string
}

// New builds the provider named by opts.Provider.
func New(ctx context.Context, opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "hash":
		return NewHashProvider(opts.Dim), nil
	case "gemini":
		return NewGeminiProvider(ctx, opts.GeminiAPIKey, opts.Model, opts.Dim)
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", opts.Provider)
	}
}

// Close releases p if it holds resources.
func Close(p Provider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
