// Package validation holds small input checks shared by the entry
// point's flag parsing and config loading, so a bad save path or
// listen address is rejected before the TLS listener or the
// observability server starts.
package validation

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

var (
	ErrInvalidPath   = errors.New("invalid file path")
	ErrPathNotExists = errors.New("path does not exist")
	ErrInvalidAddr   = errors.New("invalid listen address")
	ErrEmptyString   = errors.New("value must not be empty")
)

// FilePath cleans p and, when mustExist is true, confirms it resolves
// to an existing filesystem entry.
func FilePath(p string, mustExist bool) (string, error) {
	if p == "" {
		return "", ErrInvalidPath
	}
	p = filepath.Clean(p)
	if mustExist {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%w: %v", ErrPathNotExists, err)
		}
	}
	return p, nil
}

// Addr confirms addr parses as a TCP host:port pair.
func Addr(addr string) error {
	if addr == "" {
		return ErrInvalidAddr
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddr, err)
	}
	return nil
}

// NonEmpty rejects an empty string.
func NonEmpty(s string) error {
	if s == "" {
		return ErrEmptyString
	}
	return nil
}
