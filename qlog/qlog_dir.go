package qlog

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/quicnet/congestion/logging"
)

// QlogDir contains the value of the QLOGDIR environment variable.
// If it is the empty string ("") no qlog output is written.
var QlogDir string

func init() {
	QlogDir = os.Getenv("QLOGDIR")
	if QlogDir != "" {
		if _, err := os.Stat(QlogDir); os.IsNotExist(err) {
			if err := os.MkdirAll(QlogDir, 0o755); err != nil {
				log.Fatalf("failed to create qlog dir %s: %v", QlogDir, err)
			}
		}
	}
}

// DefaultConnectionTracer creates a qlog file in the qlog directory specified
// by the QLOGDIR environment variable. File names are <label>_<timestamp>.sqlog.
// Returns nil if QLOGDIR is not set.
func DefaultConnectionTracer(label string) *logging.ConnectionTracer {
	if QlogDir == "" {
		return nil
	}
	path := fmt.Sprintf("%s/%s_%d.sqlog", strings.TrimRight(QlogDir, "/"), label, time.Now().UnixNano())
	f, err := os.Create(path)
	if err != nil {
		log.Printf("Failed to create qlog file %s: %s", path, err.Error())
		return nil
	}
	return NewConnectionTracer(f)
}
