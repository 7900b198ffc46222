package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"stakeout/pkg/logging"
)

// Regex to capture key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// maxFooterValue drops attribute values too long for the status footer.
const maxFooterValue = 24

// footerHidden are attributes the status footer never shows.
var footerHidden = map[string]bool{
	"time":       true,
	"level":      true,
	"source":     true,
	"component":  true,
	"session_id": true,
}

// handleLatestLog returns the last captured log line, formatted for the
// footer, and the latest stake-out event.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"log":   formatLogLine(logging.ServerCapture.Last()),
		"event": logging.EventCapture.Last(),
	})
}

// formatLogLine turns a slog text line into "HH:MM:SS msg (k=v, k=v)" with
// attributes sorted and noisy or long ones removed.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg, timeStr string
	var params []string

	for _, m := range matches {
		key := m[1]
		val := m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch {
		case key == "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				timeStr = t.Format("15:04:05")
			}
		case key == "msg":
			msg = val
		case footerHidden[key], len(val) > maxFooterValue:
		default:
			params = append(params, fmt.Sprintf("%s=%s", key, val))
		}
	}

	if msg == "" {
		return raw
	}

	sort.Strings(params)

	output := msg
	if timeStr != "" {
		output = timeStr + " " + msg
	}
	if len(params) > 0 {
		return fmt.Sprintf("%s (%s)", output, strings.Join(params, ", "))
	}
	return output
}
