// Package rescan notifies the host content platform that a timeline file
// changed, so it shows up without waiting for a periodic filesystem scan.
package rescan

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Notifier runs the platform's occ files:scan command after a successful
// timeline write. A failed scan is reported to the caller but must never
// invalidate the write itself.
type Notifier struct {
	PHP     string // php binary, default "php"
	OCC     string // occ entry point, default "/var/www/html/occ"
	Timeout time.Duration
	Logger  *log.Logger
}

// Scan asks the platform to re-index relPath inside the given account.
func (n *Notifier) Scan(user, relPath string) error {
	php := n.PHP
	if php == "" {
		php = "php"
	}
	occ := n.OCC
	if occ == "" {
		occ = "/var/www/html/occ"
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, php, occ, "files:scan", user, "--path", relPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("files:scan %s failed: %w (%s)", relPath, err, strings.TrimSpace(string(out)))
	}
	if n.Logger != nil {
		n.Logger.Printf("rescan completed for %s", relPath)
	}
	return nil
}
