package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Meta is the key=value metadata record that accompanies every captured
// crash. The serialized form is one key=value pair per line with the
// terminator line "done=1" last; a meta without the terminator is still
// being written and must not be shipped.
type Meta struct {
	// ExecName is the sanitized basename of the crashed executable.
	ExecName string

	// Ver is the version string reported by the crashed process, if any.
	Ver string

	// Sig is the crash signature (first panic/fatal line, truncated).
	Sig string

	// PID is the process id of the crashed process.
	PID int

	// OSRelease identifies the host platform and kernel.
	OSRelease string

	// UptimeSec is the host uptime at capture time.
	UptimeSec uint64

	// Hostname is the capturing host's name.
	Hostname string

	// ClientID is the stable per-host reporting id from the consent record.
	ClientID string

	// CapturedAt is the capture time, serialized as unix seconds.
	CapturedAt time.Time

	// Payload is the payload filename relative to the meta file.
	Payload string

	// PayloadCRC32 is the IEEE CRC32 of the payload contents.
	PayloadCRC32 uint32

	// Done reports whether the terminator line was present.
	Done bool
}

// Encode serializes the meta in its canonical key order, ending with the
// "done=1" terminator line.
func (m Meta) Encode() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "exec_name=%s\n", m.ExecName)
	fmt.Fprintf(&b, "ver=%s\n", m.Ver)
	fmt.Fprintf(&b, "sig=%s\n", m.Sig)
	fmt.Fprintf(&b, "pid=%d\n", m.PID)
	fmt.Fprintf(&b, "os_release=%s\n", m.OSRelease)
	fmt.Fprintf(&b, "uptime_sec=%d\n", m.UptimeSec)
	fmt.Fprintf(&b, "hostname=%s\n", m.Hostname)
	fmt.Fprintf(&b, "client_id=%s\n", m.ClientID)
	fmt.Fprintf(&b, "captured_at=%d\n", m.CapturedAt.Unix())
	fmt.Fprintf(&b, "payload=%s\n", m.Payload)
	fmt.Fprintf(&b, "payload_crc32=%d\n", m.PayloadCRC32)
	b.WriteString("done=1\n")
	return []byte(b.String())
}

// ParseMeta parses a serialized meta record. Unknown keys are ignored so
// newer writers stay readable. The returned Meta has Done set only when the
// last non-empty line is exactly "done=1"; callers must treat !Done as
// in-progress and skip the report.
func ParseMeta(data []byte) (Meta, error) {
	var m Meta
	lines := strings.Split(string(data), "\n")
	last := ""
	for _, line := range lines {
		if line == "" {
			continue
		}
		last = line
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Meta{}, fmt.Errorf("%w: malformed line %q", ErrMalformedMeta, line)
		}
		switch key {
		case "exec_name":
			m.ExecName = value
		case "ver":
			m.Ver = value
		case "sig":
			m.Sig = value
		case "pid":
			pid, err := strconv.Atoi(value)
			if err != nil {
				return Meta{}, fmt.Errorf("%w: pid %q", ErrMalformedMeta, value)
			}
			m.PID = pid
		case "os_release":
			m.OSRelease = value
		case "uptime_sec":
			up, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return Meta{}, fmt.Errorf("%w: uptime_sec %q", ErrMalformedMeta, value)
			}
			m.UptimeSec = up
		case "hostname":
			m.Hostname = value
		case "client_id":
			m.ClientID = value
		case "captured_at":
			sec, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Meta{}, fmt.Errorf("%w: captured_at %q", ErrMalformedMeta, value)
			}
			m.CapturedAt = time.Unix(sec, 0).UTC()
		case "payload":
			m.Payload = value
		case "payload_crc32":
			crc, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return Meta{}, fmt.Errorf("%w: payload_crc32 %q", ErrMalformedMeta, value)
			}
			m.PayloadCRC32 = uint32(crc)
		}
	}
	m.Done = last == "done=1"
	return m, nil
}

// Report is a finalized report set on disk: the meta record plus the payload
// it points at. Reports are the unit of shipping; one upload carries one
// report.
type Report struct {
	// Basename is the shared set name, <exec>.<YYYYMMDD>.<HHMMSS>.<pid>.
	Basename string

	// MetaPath is the absolute path of the .meta file.
	MetaPath string

	// PayloadPath is the absolute path of the payload file.
	PayloadPath string

	// PayloadBytes is the payload size on disk.
	PayloadBytes int64

	// Meta is the parsed metadata record.
	Meta Meta
}

// CapturedAt returns the capture time recorded in the meta.
func (r Report) CapturedAt() time.Time {
	return r.Meta.CapturedAt
}

// SortReports orders reports oldest-first by capture time, breaking ties by
// basename so the order is stable across scans.
func SortReports(reports []Report) {
	sort.Slice(reports, func(i, j int) bool {
		ti, tj := reports[i].Meta.CapturedAt, reports[j].Meta.CapturedAt
		if ti.Equal(tj) {
			return reports[i].Basename < reports[j].Basename
		}
		return ti.Before(tj)
	})
}

// SanitizeExecName maps an executable name onto the spool-safe alphabet:
// every byte outside [0-9A-Za-z] becomes '_'.
func SanitizeExecName(name string) string {
	b := []byte(name)
	for i, c := range b {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

// ReportBasename builds the canonical set name for a crash of exec at t with
// the given pid.
func ReportBasename(exec string, t time.Time, pid int) string {
	return fmt.Sprintf("%s.%s.%s.%d", SanitizeExecName(exec), t.Format("20060102"), t.Format("150405"), pid)
}
