//go:build !unix

package store

import "errors"

func lockFile(path string) (func(), error) {
	return nil, &IOError{Op: "lock", Path: path, Err: errors.ErrUnsupported}
}
