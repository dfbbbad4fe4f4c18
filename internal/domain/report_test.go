package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMetaEncodeParseRoundTrip(t *testing.T) {
	m := Meta{
		ExecName:     "my_server",
		Ver:          "1.4.2",
		Sig:          "panic: runtime error: invalid memory address or nil pointer dereference",
		PID:          4242,
		OSRelease:    "linux-6.8",
		UptimeSec:    90061,
		Hostname:     "build-07",
		ClientID:     "a1b2c3d4e5f60718293a4b5c6d7e8f90",
		CapturedAt:   time.Unix(1724500000, 0).UTC(),
		Payload:      "my_server.20240824.114640.4242.log",
		PayloadCRC32: 0xDEADBEEF,
	}

	got, err := ParseMeta(m.Encode())
	if err != nil {
		t.Fatalf("ParseMeta: %v", err)
	}
	if !got.Done {
		t.Error("Done = false after Encode, want true")
	}
	got.Done = false
	if got != m {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, m)
	}
}

func TestMetaEncodeTerminatorLast(t *testing.T) {
	data := string(Meta{ExecName: "x"}.Encode())
	if !strings.HasSuffix(data, "done=1\n") {
		t.Errorf("encoded meta does not end with terminator: %q", data)
	}
}

func TestParseMetaIncomplete(t *testing.T) {
	m := Meta{ExecName: "svc", PID: 7}
	data := m.Encode()
	// Strip the terminator the way a partial write would.
	trimmed := []byte(strings.TrimSuffix(string(data), "done=1\n"))

	got, err := ParseMeta(trimmed)
	if err != nil {
		t.Fatalf("ParseMeta: %v", err)
	}
	if got.Done {
		t.Error("Done = true without terminator")
	}
}

func TestParseMetaTerminatorMustBeLast(t *testing.T) {
	data := "exec_name=svc\ndone=1\npid=7\n"
	got, err := ParseMeta([]byte(data))
	if err != nil {
		t.Fatalf("ParseMeta: %v", err)
	}
	if got.Done {
		t.Error("Done = true with trailing lines after terminator")
	}
}

func TestParseMetaIgnoresUnknownKeys(t *testing.T) {
	data := "exec_name=svc\nfuture_field=whatever\ndone=1\n"
	got, err := ParseMeta([]byte(data))
	if err != nil {
		t.Fatalf("ParseMeta: %v", err)
	}
	if got.ExecName != "svc" || !got.Done {
		t.Errorf("got %+v, want ExecName=svc Done=true", got)
	}
}

func TestParseMetaMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no separator", "exec_name=svc\njust a line\n"},
		{"bad pid", "pid=abc\ndone=1\n"},
		{"bad uptime", "uptime_sec=-3\ndone=1\n"},
		{"bad captured_at", "captured_at=later\ndone=1\n"},
		{"bad crc", "payload_crc32=0x12\ndone=1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMeta([]byte(tt.data)); !errors.Is(err, ErrMalformedMeta) {
				t.Errorf("err = %v, want ErrMalformedMeta", err)
			}
		})
	}
}

func TestSortReports(t *testing.T) {
	at := func(sec int64) Meta { return Meta{CapturedAt: time.Unix(sec, 0)} }
	reports := []Report{
		{Basename: "c", Meta: at(300)},
		{Basename: "b", Meta: at(100)},
		{Basename: "a", Meta: at(100)},
		{Basename: "d", Meta: at(200)},
	}

	SortReports(reports)

	want := []string{"a", "b", "d", "c"}
	for i, name := range want {
		if reports[i].Basename != name {
			t.Fatalf("order[%d] = %s, want %s", i, reports[i].Basename, name)
		}
	}
}

func TestSanitizeExecName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"myserver", "myserver"},
		{"my-server.exe", "my_server_exe"},
		{"Abc123", "Abc123"},
		{"a b/c", "a_b_c"},
		{"caf\xc3\xa9", "caf__"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeExecName(tt.in); got != tt.want {
			t.Errorf("SanitizeExecName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReportBasename(t *testing.T) {
	at := time.Date(2026, 8, 24, 15, 30, 45, 0, time.UTC)
	got := ReportBasename("my-app", at, 4242)
	want := "my_app.20260824.153045.4242"
	if got != want {
		t.Errorf("ReportBasename = %q, want %q", got, want)
	}
}
