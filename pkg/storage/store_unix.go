//go:build !windows
// +build !windows

package storage

import (
	"errors"
	"k8s.io/klog/v2"
	"os/user"
	"path/filepath"
	"syscall"
)

var (
	storePath = getStorePath()
)

func getStorePath() string {
	if u, err := user.Current(); err == nil {
		return filepath.Join(u.HomeDir, "opcbridge")
	} else {
		klog.ErrorS(err, "Failed to get home dir")
		return "./opcbridge"
	}
}

func isEphemeralError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN, syscall.EINTR:
			return true
		}
	}
	return false
}
