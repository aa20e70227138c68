// Package lockfile locates and parses the control-plane lockfile written by the game client.
package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileName is the lockfile's name inside the client installation directory.
const FileName = "lockfile"

const fieldCount = 5

// Credentials are the endpoint details recovered from a lockfile.
type Credentials struct {
	Port     int
	Password string
	Scheme   string
}

// SocketScheme returns the websocket scheme matching the lockfile protocol.
func (c Credentials) SocketScheme() string {
	if strings.EqualFold(c.Scheme, "http") {
		return "ws"
	}
	return "wss"
}

// HTTPScheme returns the REST scheme matching the lockfile protocol.
func (c Credentials) HTTPScheme() string {
	if strings.EqualFold(c.Scheme, "http") {
		return "http"
	}
	return "https"
}

// Path resolves the lockfile location from a hint. A directory hint is the installation
// directory itself; any other hint is treated as a file inside it (typically the client
// executable).
func Path(hint string) string {
	cleaned := filepath.Clean(strings.TrimSpace(hint))
	if info, err := os.Stat(cleaned); err == nil && info.IsDir() {
		return filepath.Join(cleaned, FileName)
	}
	return filepath.Join(filepath.Dir(cleaned), FileName)
}

// Discover reads the lockfile next to hint. It reports false when the file is absent,
// unreadable or malformed: the client simply is not running yet.
func Discover(hint string) (Credentials, bool) {
	if strings.TrimSpace(hint) == "" {
		return Credentials{}, false
	}
	content, err := os.ReadFile(Path(hint)) // #nosec G304 -- path comes from operator config.
	if err != nil {
		return Credentials{}, false
	}
	return Parse(string(content))
}

// Parse decodes processName:pid:port:password:protocol, keeping the last three fields.
func Parse(content string) (Credentials, bool) {
	fields := strings.Split(strings.TrimSpace(content), ":")
	if len(fields) != fieldCount {
		return Credentials{}, false
	}
	port, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil || port <= 0 || port > 65535 {
		return Credentials{}, false
	}
	password := fields[3]
	if password == "" {
		return Credentials{}, false
	}
	scheme := strings.ToLower(strings.TrimSpace(fields[4]))
	if scheme == "" {
		return Credentials{}, false
	}
	return Credentials{Port: port, Password: password, Scheme: scheme}, true
}
