package adapter

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tia.dev/pkg/tia/internal/impact"
	m "tia.dev/pkg/tia/internal/model"
)

const impactHeader = "# tia test impact: name=timestamp-ms,module;module"

// ImpactFile persists test-impact records.
type ImpactFile interface {
	Save(path m.Path, entries []impact.Entry) error
	Load(path m.Path) ([]impact.Entry, error)
}

// LocalImpactFile stores one record per line:
//
//	<qualified test name>=<unix millis>,<module>;<module>...
//
// The characters = , ; \ and line breaks are escaped with a backslash, as is
// a leading # that would otherwise start a comment.
type LocalImpactFile struct{}

// NewLocalImpactFile constructs a LocalImpactFile.
func NewLocalImpactFile() *LocalImpactFile {
	return &LocalImpactFile{}
}

// Save writes entries to path. Malformed entries are not written.
func (f *LocalImpactFile) Save(path m.Path, entries []impact.Entry) error {
	var buf bytes.Buffer

	buf.WriteString(impactHeader)
	buf.WriteByte('\n')

	for _, entry := range entries {
		if entry.Malformed {
			continue
		}

		buf.WriteString(escapeImpact(entry.Test))
		buf.WriteByte('=')
		buf.WriteString(strconv.FormatInt(entry.Timestamp.UnixMilli(), 10))
		buf.WriteByte(',')

		for i, module := range entry.Modules {
			if i > 0 {
				buf.WriteByte(';')
			}

			buf.WriteString(escapeImpact(string(module)))
		}

		buf.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return err
	}

	tmp := string(path) + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write test impact file: %w", err)
	}

	if err := os.Rename(tmp, string(path)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace test impact file: %w", err)
	}

	slog.Debug("Saved test impact", "path", path, "entries", len(entries))

	return nil
}

// Load reads the records at path. Lines that cannot be parsed but still name a
// test are returned as malformed entries.
func (f *LocalImpactFile) Load(path m.Path) ([]impact.Entry, error) {
	file, err := os.Open(string(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open test impact file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	var entries []impact.Entry

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseImpactLine(line)
		if err != nil {
			slog.Warn("Malformed test impact record", "path", path, "line", lineNo, "error", err)

			if entry.Test == "" {
				continue
			}

			entry.Malformed = true
		}

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read test impact file: %w", err)
	}

	return entries, nil
}

func parseImpactLine(line string) (impact.Entry, error) {
	fields := splitEscaped(line, '=')
	if len(fields) != 2 {
		return impact.Entry{}, errors.New("expected name=value")
	}

	entry := impact.Entry{Test: unescapeImpact(fields[0])}
	if entry.Test == "" {
		return entry, errors.New("empty test name")
	}

	value := splitEscaped(fields[1], ',')
	if len(value) != 2 {
		return entry, errors.New("expected timestamp,modules")
	}

	millis, err := strconv.ParseInt(value[0], 10, 64)
	if err != nil {
		return entry, fmt.Errorf("bad timestamp: %w", err)
	}

	entry.Timestamp = time.UnixMilli(millis)

	if value[1] == "" {
		return entry, nil
	}

	for _, module := range splitEscaped(value[1], ';') {
		if module == "" {
			return entry, errors.New("empty module name")
		}

		entry.Modules = append(entry.Modules, m.ModuleName(unescapeImpact(module)))
	}

	return entry, nil
}

// splitEscaped splits s at every sep not preceded by an escaping backslash.
// The parts keep their escapes.
func splitEscaped(s string, sep byte) []string {
	var (
		parts []string
		start int
	)

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}

	return append(parts, s[start:])
}

func escapeImpact(s string) string {
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '=', ',', ';':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '#':
			if i == 0 {
				b.WriteByte('\\')
			}

			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func unescapeImpact(s string) string {
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}

		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}

	return b.String()
}
