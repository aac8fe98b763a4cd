package devspec

import (
	"errors"
	"testing"

	"github.com/ccio/ccrf/internal/proto"
)

func TestParseAny(t *testing.T) {
	for _, s := range []string{"", "any"} {
		target, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if target.Kind != KindAny {
			t.Fatalf("Parse(%q): expected KindAny, got %v", s, target.Kind)
		}
	}
}

func TestParseAbsolutePath(t *testing.T) {
	target, err := Parse("/dev/ttyACM3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.Kind != KindPath || target.Path != "/dev/ttyACM3" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestParseDecimalShorthand(t *testing.T) {
	target, err := Parse("3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.Kind != KindPath || target.Path != "/dev/ttyACM3" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestParseSerial(t *testing.T) {
	target, err := Parse("0123456789ABCDEF")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.Kind != KindSerial || target.Serial != "0123456789abcdef" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestParseCellAddr(t *testing.T) {
	target, err := Parse("2:1a")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.Kind != KindCellAddr || !target.HasCell || target.Cell != 2 || target.Addr != 0x1a {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestParseAddrOnly(t *testing.T) {
	target, err := Parse(":1a")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.Kind != KindCellAddr || target.HasCell || target.Addr != 0x1a {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestParseProxyClient(t *testing.T) {
	target, err := Parse("unix:///tmp/ccrf.sock")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.Kind != KindProxyClient || target.SocketPath != "/tmp/ccrf.sock" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestParseProxyServer(t *testing.T) {
	target, err := Parse("unix:///tmp/ccrf.sock@/dev/ttyACM0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.Kind != KindProxyServer || target.SocketPath != "/tmp/ccrf.sock" || target.Path != "/dev/ttyACM0" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestParseProxyServerWithDecimalTTYShorthand(t *testing.T) {
	target, err := Parse("unix:///tmp/ccrf.sock@2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.Path != "/dev/ttyACM2" {
		t.Fatalf("expected expanded tty shorthand, got %q", target.Path)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("!!!not-a-spec"); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
}

func TestResolvePathNeedsNoProbing(t *testing.T) {
	target, _ := Parse("/dev/ttyACM9")
	path, err := Resolve(target, func() ([]string, error) {
		t.Fatal("candidates should not be called for KindPath")
		return nil, nil
	}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != "/dev/ttyACM9" {
		t.Fatalf("got %q", path)
	}
}

func TestResolveAnyPicksFirstCandidate(t *testing.T) {
	target, _ := Parse("any")
	path, err := Resolve(target, func() ([]string, error) {
		return []string{"/dev/ttyACM0", "/dev/ttyACM1"}, nil
	}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != "/dev/ttyACM0" {
		t.Fatalf("got %q", path)
	}
}

func TestResolveSerialMatchesProbedCandidate(t *testing.T) {
	target, _ := Parse("00000000000000ab")
	candidates := func() ([]string, error) {
		return []string{"/dev/ttyACM0", "/dev/ttyACM1"}, nil
	}
	probe := func(path string) (*proto.StatusReply, error) {
		if path == "/dev/ttyACM1" {
			return &proto.StatusReply{Serial: 0xab}, nil
		}
		return &proto.StatusReply{Serial: 0xff}, nil
	}
	path, err := Resolve(target, candidates, probe)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != "/dev/ttyACM1" {
		t.Fatalf("got %q", path)
	}
}

func TestResolveCellAddrNoMatchReturnsErrNotMatched(t *testing.T) {
	target, _ := Parse("2:1a")
	candidates := func() ([]string, error) { return []string{"/dev/ttyACM0"}, nil }
	probe := func(path string) (*proto.StatusReply, error) {
		return &proto.StatusReply{Addr: 0x1a, Cell: 9}, nil
	}
	if _, err := Resolve(target, candidates, probe); !errors.Is(err, ErrNotMatched) {
		t.Fatalf("expected ErrNotMatched, got %v", err)
	}
}

func TestResolveAddrOnlyIgnoresCell(t *testing.T) {
	target, _ := Parse(":1a")
	candidates := func() ([]string, error) { return []string{"/dev/ttyACM0"}, nil }
	probe := func(path string) (*proto.StatusReply, error) {
		return &proto.StatusReply{Addr: 0x1a, Cell: 9}, nil
	}
	path, err := Resolve(target, candidates, probe)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != "/dev/ttyACM0" {
		t.Fatalf("got %q", path)
	}
}
