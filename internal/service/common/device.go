//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"
	"os/user"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// deviceIDPrefix marks client-generated device identifiers.
const deviceIDPrefix = "device_"

// NewDeviceID returns a fresh device identifier.
func NewDeviceID() string {
	return deviceIDPrefix + uuid.NewString()
}

// DetectDeviceInfo gathers the metadata a device registers with.
// Fields that cannot be detected are left out.
func DetectDeviceInfo(client string) map[string]any {
	info := map[string]any{
		"platform": runtime.GOOS,
		"arch":     runtime.GOARCH,
	}

	if client != "" {
		info["client"] = client
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		info["hostname"] = hostname
	}

	if currentUser, err := user.Current(); err == nil && currentUser.Username != "" {
		info["username"] = currentUser.Username
	}

	if locale := detectLocale(); locale != "" {
		info["language"] = locale
	}

	return info
}

// detectLocale reads the POSIX locale variables in precedence order.
func detectLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		value := os.Getenv(key)
		if value == "" || value == "C" || value == "POSIX" {
			continue
		}

		// Drop the encoding suffix: en_US.UTF-8 -> en_US.
		if idx := strings.IndexByte(value, '.'); idx > 0 {
			value = value[:idx]
		}

		return value
	}

	return ""
}
