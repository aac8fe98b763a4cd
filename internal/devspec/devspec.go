// Package devspec parses the Cloud Chaser device-spec grammar (spec.md §6)
// into a Target describing how to reach a board: directly by tty path, by
// decimal ttyACM shorthand, by serial number or cell:addr match (which
// requires probing candidate ttys), or via a proxy daemon's unix socket.
package devspec

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ccio/ccrf/internal/proto"
)

// Kind identifies which grammar form a spec parsed as.
type Kind int

const (
	// KindAny matches the first listed candidate tty, without probing it.
	KindAny Kind = iota
	// KindPath opens the given tty path directly, no probing.
	KindPath
	// KindSerial matches a candidate tty by 16-hex-char serial number.
	KindSerial
	// KindCellAddr matches a candidate tty by cell:addr (cell optional).
	KindCellAddr
	// KindProxyClient connects to an already-running proxy daemon.
	KindProxyClient
	// KindProxyServer opens tty directly and also serves it over a unix
	// socket for other processes.
	KindProxyServer
)

// Target is the parsed, resolved-enough-to-act-on form of a device spec.
type Target struct {
	Kind Kind

	// Path is set for KindPath/KindProxyServer (the tty to open).
	Path string

	// Serial is set for KindSerial (16 hex chars, case-insensitive).
	Serial string

	// Cell/Addr are set for KindCellAddr. HasCell reports whether a cell
	// was given (":addr" omits it, meaning "match any cell").
	HasCell bool
	Cell    uint8
	Addr    uint16

	// SocketPath is set for KindProxyClient/KindProxyServer.
	SocketPath string
}

var (
	// ErrSyntax is returned for a spec string matching no grammar form.
	ErrSyntax = errors.New("devspec: unrecognized device spec syntax")
	// ErrNotMatched is returned by Resolve when no probed candidate matches.
	ErrNotMatched = errors.New("devspec: no matching device found")
)

var (
	hexSerialRe = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)
	decimalRe   = regexp.MustCompile(`^[0-9]{1,3}$`)
	cellAddrRe  = regexp.MustCompile(`^(?:([0-9a-fA-F]{1,2}):)?([0-9a-fA-F]{1,4})$`)
)

// Parse classifies spec per spec.md §6's grammar. It does not touch the
// filesystem; candidate-listing kinds (KindAny, KindSerial, KindCellAddr)
// are resolved later by Resolve.
func Parse(spec string) (Target, error) {
	if spec == "" || spec == "any" {
		return Target{Kind: KindAny}, nil
	}

	if rest, ok := strings.CutPrefix(spec, "unix://"); ok {
		path, ttySpec, hasTTY := strings.Cut(rest, "@")
		if path == "" {
			return Target{}, fmt.Errorf("%w: empty unix socket path in %q", ErrSyntax, spec)
		}
		if hasTTY {
			return Target{Kind: KindProxyServer, SocketPath: path, Path: resolveTTYSpec(ttySpec)}, nil
		}
		return Target{Kind: KindProxyClient, SocketPath: path}, nil
	}

	if filepath.IsAbs(spec) {
		return Target{Kind: KindPath, Path: spec}, nil
	}

	if decimalRe.MatchString(spec) {
		return Target{Kind: KindPath, Path: resolveTTYSpec(spec)}, nil
	}

	if hexSerialRe.MatchString(spec) {
		return Target{Kind: KindSerial, Serial: strings.ToLower(spec)}, nil
	}

	if m := cellAddrRe.FindStringSubmatch(spec); m != nil {
		t := Target{Kind: KindCellAddr}
		if m[1] != "" {
			cell, err := strconv.ParseUint(m[1], 16, 8)
			if err != nil {
				return Target{}, fmt.Errorf("%w: bad cell in %q", ErrSyntax, spec)
			}
			t.HasCell = true
			t.Cell = uint8(cell)
		}
		addr, err := strconv.ParseUint(m[2], 16, 16)
		if err != nil {
			return Target{}, fmt.Errorf("%w: bad addr in %q", ErrSyntax, spec)
		}
		t.Addr = uint16(addr)
		return t, nil
	}

	return Target{}, fmt.Errorf("%w: %q", ErrSyntax, spec)
}

// resolveTTYSpec expands the decimal ttyACM<n> shorthand; any other string
// (including already-absolute paths after "@") passes through unchanged.
func resolveTTYSpec(s string) string {
	if s == "" {
		return s
	}
	if decimalRe.MatchString(s) {
		return "/dev/ttyACM" + s
	}
	return s
}

// Prober opens a candidate tty path and returns its status reply, used by
// Resolve to evaluate KindSerial/KindCellAddr targets. The caller
// supplies this (it owns opening and closing a real link), matching
// spec.md §1's "external USB tty enumeration helper" collaborator boundary:
// devspec implements the matching predicate, not the tty listing/opening.
type Prober func(path string) (*proto.StatusReply, error)

// Candidates lists tty paths to probe, typically a glob of /dev/ttyACM*.
type Candidates func() ([]string, error)

// Resolve evaluates a Target against probe results. KindPath/KindProxyClient/
// KindProxyServer need no probing: KindPath and KindProxyServer return Path
// (the tty to open), KindProxyClient returns SocketPath. KindAny returns the
// first candidate without probing. KindSerial/KindCellAddr probe each
// candidate with probe until one matches.
func Resolve(t Target, candidates Candidates, probe Prober) (string, error) {
	switch t.Kind {
	case KindPath, KindProxyServer:
		return t.Path, nil
	case KindProxyClient:
		return t.SocketPath, nil
	}

	paths, err := candidates()
	if err != nil {
		return "", fmt.Errorf("devspec: listing candidates: %w", err)
	}

	switch t.Kind {
	case KindAny:
		if len(paths) == 0 {
			return "", ErrNotMatched
		}
		return paths[0], nil

	case KindSerial:
		for _, p := range paths {
			st, err := probe(p)
			if err != nil {
				continue
			}
			if strings.EqualFold(formatSerial(st.Serial), t.Serial) {
				return p, nil
			}
		}
		return "", ErrNotMatched

	case KindCellAddr:
		for _, p := range paths {
			st, err := probe(p)
			if err != nil {
				continue
			}
			if st.Addr != t.Addr {
				continue
			}
			if t.HasCell && st.Cell != t.Cell {
				continue
			}
			return p, nil
		}
		return "", ErrNotMatched
	}

	return "", fmt.Errorf("%w: unhandled kind %d", ErrSyntax, t.Kind)
}

func formatSerial(serial uint64) string {
	return fmt.Sprintf("%016x", serial)
}
