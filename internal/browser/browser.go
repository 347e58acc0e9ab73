// Package browser hands item links to the desktop's default browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Launcher starts an external command without waiting for it.
type Launcher func(name string, args ...string) error

func startCommand(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Opener opens http(s) links for a given OS.
type Opener struct {
	GOOS   string
	Launch Launcher
}

// Open opens rawURL with the current platform's handler.
func Open(rawURL string) error {
	return Opener{}.Open(rawURL)
}

func (o Opener) Open(rawURL string) error {
	if err := Validate(rawURL); err != nil {
		return err
	}
	goos := o.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	launch := o.Launch
	if launch == nil {
		launch = startCommand
	}
	name, args := command(goos, rawURL)
	if err := launch(name, args...); err != nil {
		return fmt.Errorf("opening %s: %w", rawURL, err)
	}
	return nil
}

// Validate accepts absolute http and https URLs only.
func Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open URL with scheme %q (only http/https allowed)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	return nil
}

func command(goos, rawURL string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{rawURL}
	case "windows":
		// rundll32 avoids cmd.exe parsing the URL.
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}
	default:
		return "xdg-open", []string{rawURL}
	}
}
