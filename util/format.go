package util

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// PrettyTime formats a duration in seconds the way top renders cumulative
// CPU time: H:MM:SS above an hour, M:SS.cc below.
func PrettyTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	hours := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, mins, secs)
	}
	cents := int((seconds - float64(total)) * 100)
	return fmt.Sprintf("%d:%02d.%02d", mins, secs, cents)
}

// PrettyBytes renders a byte count with a binary unit suffix.
func PrettyBytes(v float64) string {
	if v < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(v))
}

// PrettyAddress joins an ip and port for display; missing halves render as
// a wildcard.
func PrettyAddress(ip string, port int) string {
	if ip == "" {
		ip = "*"
	}
	if port <= 0 {
		return ip + ":*"
	}
	return fmt.Sprintf("%s:%d", ip, port)
}

// FormatTimestamp renders an epoch-seconds time in the local zone.
func FormatTimestamp(epoch float64) string {
	if epoch <= 0 {
		return "-"
	}
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).Format("2006-01-02 15:04:05")
}

// RelativeTimestamp renders an epoch time as "N units ago" (or "in N units").
func RelativeTimestamp(epoch float64) string {
	if epoch <= 0 {
		return "-"
	}
	return humanize.Time(time.Unix(int64(epoch), 0))
}
