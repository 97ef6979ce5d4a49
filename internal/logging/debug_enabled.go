//go:build debug

package logging

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	mu sync.Mutex
)

// stderrDebugf prints formatted debug output straight to stderr, bypassing
// logrus. It is compiled only with the debug build tag; the exported Debugf
// in logging.go is the one callers use.
func stderrDebugf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	timestamp := time.Now().Format(time.RFC3339)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "[%s][DEBUG] %s\n", timestamp, msg)
}
