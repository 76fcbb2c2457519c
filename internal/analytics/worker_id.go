package analytics

import (
	"os"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewWorkerID returns host/pid/ulid so log lines from several replicas can be
// told apart.
func NewWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	host, _, _ = strings.Cut(host, ".")
	return host + "/" + strconv.Itoa(os.Getpid()) + "/" + strings.ToLower(ulid.Make().String())
}
