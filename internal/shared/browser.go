package shared

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var getRuntime = func() string { return runtime.GOOS }

// browserCommand picks the command that opens url. $BROWSER wins over the platform default.
func browserCommand(goos, url string) ([]string, error) {
	if b := strings.TrimSpace(os.Getenv("BROWSER")); b != "" {
		return append(strings.Fields(b), url), nil
	}

	switch goos {
	case "darwin":
		return []string{"open", url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return []string{"xdg-open", url}, nil
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", url}, nil
	default:
		return nil, fmt.Errorf("%w: cannot open a browser on %s", ErrNotImplemented, goos)
	}
}

// OpenBrowser starts the user's browser on url without waiting for it to exit.
// Used for the OAuth consent page; callers fall back to printing the URL.
func OpenBrowser(url string) error {
	args, err := browserCommand(getRuntime(), url)
	if err != nil {
		return err
	}

	if err := exec.Command(args[0], args[1:]...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
