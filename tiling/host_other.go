//go:build !amd64 && !arm64

package tiling

func init() {
	hostLevel = HostScalar
	hostWidth = 16 // Use 16-byte vectors even in scalar mode for consistency
}
