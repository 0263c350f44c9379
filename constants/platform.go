package constants

// Device types accepted by --device-type.
const (
	ADB  = "adb"
	IOS  = "ios"
	HOST = "host"
)

// DeviceTypes lists the supported device types.
var DeviceTypes = []string{ADB, IOS, HOST}

const (
	AppName    = "devpulse"
	AppPackage = "github.com/spance/devpulse"
)

// Set at link time: -ldflags "-X github.com/spance/devpulse/constants.Version=…".
var (
	Version = "dev"
	Build   = "0"
)
