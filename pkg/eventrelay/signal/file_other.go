//go:build !linux

package signal

func watchDirectory(string, options, func(string)) (func(), error) {
	return nil, ErrSignalUnsupported
}
