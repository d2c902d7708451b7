package bridge

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newCorrelationID returns "req_<unix millis>_<7 hex chars>".
func newCorrelationID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return "req_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix
}
