package chat

import "strings"

type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceDesktop DeviceClass = "desktop"
)

var (
	tabletMarkers = []string{"ipad", "tablet", "kindle", "silk/", "playbook"}
	mobileMarkers = []string{"mobile", "iphone", "ipod", "android", "blackberry", "windows phone", "opera mini"}
)

// Classify maps a client signature (explicit device hint or User-Agent) to a
// device class. Unknown or empty signatures are desktop.
func Classify(signature string) DeviceClass {
	s := strings.ToLower(strings.TrimSpace(signature))
	switch DeviceClass(s) {
	case DeviceMobile, DeviceTablet, DeviceDesktop:
		return DeviceClass(s)
	case "":
		return DeviceDesktop
	}

	for _, m := range tabletMarkers {
		if strings.Contains(s, m) {
			return DeviceTablet
		}
	}
	// Android tablets omit "mobile" from their UA.
	if strings.Contains(s, "android") && !strings.Contains(s, "mobile") {
		return DeviceTablet
	}
	for _, m := range mobileMarkers {
		if strings.Contains(s, m) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}
