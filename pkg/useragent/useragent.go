// Package useragent builds the client descriptor attached to every RPC call
// and to the bootstrap version check.
package useragent

import (
	"fmt"
	"runtime"
	"strings"
)

// Version is the SDK version. Overridden at build time via ldflags.
var Version = "dev"

// Descriptor describes the application embedding the SDK.
type Descriptor struct {
	// AppName identifies the embedding application, e.g. "Notewell".
	AppName string

	// AppVersion is the embedding application's version string.
	AppVersion string

	// Device optionally names the device model.
	Device string
}

// String renders the descriptor as "app/version (os/arch; device; sdk)".
func (d Descriptor) String() string {
	app := d.AppName
	if app == "" {
		app = "notewell-go"
	}
	version := d.AppVersion
	if version == "" {
		version = Version
	}

	details := []string{fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)}
	if d.Device != "" {
		details = append(details, d.Device)
	}
	details = append(details, "notewell-go/"+Version)

	return fmt.Sprintf("%s/%s (%s)", app, version, strings.Join(details, "; "))
}
