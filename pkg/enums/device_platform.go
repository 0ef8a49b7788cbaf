package enums

import (
	"fmt"
	"strings"
)

// DevicePlatform identifies the push channel a device token belongs to.
type DevicePlatform string

const (
	DevicePlatformAndroid DevicePlatform = "ANDROID"
	DevicePlatformIOS     DevicePlatform = "IOS"
	DevicePlatformWeb     DevicePlatform = "WEB"
)

var validDevicePlatforms = []DevicePlatform{
	DevicePlatformAndroid,
	DevicePlatformIOS,
	DevicePlatformWeb,
}

func (p DevicePlatform) String() string {
	return string(p)
}

func (p DevicePlatform) IsValid() bool {
	for _, candidate := range validDevicePlatforms {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseDevicePlatform accepts any casing.
func ParseDevicePlatform(value string) (DevicePlatform, error) {
	normalized := DevicePlatform(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid device platform %q", value)
}
