package instance

import (
	"os"

	"github.com/privilegia/privilegia-backend/pkg/env"
)

// GetID identifies this process in lock values and logs. PRIVILEGIA_WORKER_ID
// wins, then WORKER_ID, then the hostname.
func GetID() string {
	if id := env.Get("PRIVILEGIA_WORKER_ID", env.Get("WORKER_ID", "")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
