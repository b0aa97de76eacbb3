// Package configapi abstracts where configuration text comes from. The
// router core only consumes the Provider contract; loading and validation of
// the text itself belongs to the config builder.
package configapi

import (
	"fmt"
	"os"
)

// Provider fetches the current configuration text.
type Provider interface {
	Get() (string, error)
}

// FileProvider reads configuration from a file on each fetch.
type FileProvider struct {
	Path string
}

// NewFileProvider builds a provider reading from path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

// Get returns the file contents.
func (p *FileProvider) Get() (string, error) {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return "", fmt.Errorf("configapi: read %s: %w", p.Path, err)
	}
	return string(b), nil
}

// StaticProvider serves a fixed configuration text. Useful for tests and
// embedded configs.
type StaticProvider struct {
	Text string
}

// Get returns the static text.
func (p *StaticProvider) Get() (string, error) {
	return p.Text, nil
}
