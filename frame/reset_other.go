//go:build !windows

package frame

func isPlatformReset(error) bool { return false }
