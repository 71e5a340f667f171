package records

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/netip"
	"os"
	"strings"

	"github.com/haukened/localdns/internal/dns/common/utils"
)

// Load reads the records file at path. A missing file yields an empty store.
func Load(path, suffix string, opts ...Option) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			o := buildOptions(opts)
			o.logger.Debug(map[string]any{"path": path}, "Records file not found, using empty records")
			return newStore(map[string]netip.Addr{}, path, o), nil
		}
		return nil, fmt.Errorf("failed to stat records file %s: %w", path, err)
	}
	return LoadStrict(path, suffix, opts...)
}

// LoadStrict reads the records file at path, which must exist.
func LoadStrict(path, suffix string, opts ...Option) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer f.Close()
	return Parse(f, path, suffix, opts...)
}

// Parse reads hostname:ipv4 lines from r.
//
// Blank lines and lines starting with '#' are skipped. The line is split on
// the first ':'; the right side must be a dotted-decimal IPv4 address.
// Hostnames that do not end with suffix are dropped with a warning. A
// hostname listed twice is an error.
func Parse(r io.Reader, source, suffix string, opts ...Option) (*Store, error) {
	o := buildOptions(opts)
	scanner := bufio.NewScanner(r)

	entries := make(map[string]netip.Addr)
	seen := make(map[string]struct{})

	o.logger.Debug(map[string]any{"source": source, "suffix": suffix}, "parse_records_start")

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := strings.TrimSuffix(scanner.Text(), "\r")
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		host, addr, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d %q: %w", source, lineNum, raw, err)
		}

		if _, dup := seen[host]; dup {
			return nil, fmt.Errorf("%s line %d: %w: %s", source, lineNum, ErrDuplicateHost, host)
		}
		seen[host] = struct{}{}

		if !strings.HasSuffix(host, suffix) {
			o.logger.Warn(map[string]any{
				"source": source,
				"line":   lineNum,
				"host":   host,
				"suffix": suffix,
			}, "Ignoring record outside the configured suffix")
			continue
		}

		entries[host] = addr
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	o.logger.Debug(map[string]any{"source": source, "records": len(entries)}, "parse_records_done")
	return newStore(entries, source, o), nil
}

func parseLine(line string) (string, netip.Addr, error) {
	name, ip, found := strings.Cut(line, ":")
	if !found {
		return "", netip.Addr{}, fmt.Errorf("%w: missing IP", ErrInvalidLine)
	}
	host := utils.TrimHostname(name)
	if host == "" {
		return "", netip.Addr{}, fmt.Errorf("%w: missing hostname", ErrInvalidLine)
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", netip.Addr{}, fmt.Errorf("%w: %w", ErrInvalidLine, err)
	}
	if !addr.Is4() {
		return "", netip.Addr{}, fmt.Errorf("%w: %s is not an IPv4 address", ErrInvalidLine, addr)
	}
	return host, addr, nil
}
