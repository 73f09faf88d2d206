package appsel

import (
	"fmt"
	"os"
	"os/user"
	"strings"
)

// SocketPath returns the Unix socket path of ade-appsel-ctld
func SocketPath() (string, error) {
	socketPath := os.Getenv("ADE_APPSEL_SOCK")
	if socketPath != "" {
		if strings.HasPrefix(socketPath, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			socketPath = strings.Replace(socketPath, "~", home, 1)
		}
		return socketPath, nil
	}

	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return fmt.Sprintf("/tmp/ade-%s/appsel", currentUser.Uid), nil
}
