package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
)

func TestWriter(t *testing.T) {
	t.Run("filename_with_session", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(dir, "copilot", "abcd1234")
		if w.Dir() != dir {
			t.Fatalf("Dir() = %q, want %q", w.Dir(), dir)
		}
		path, err := w.Write(map[string]string{"k": "v"})
		if err != nil {
			t.Fatal(err)
		}
		name := filepath.Base(path)
		re := regexp.MustCompile(`^copilot_abcd1234_\d+-000000\.json$`)
		if !re.MatchString(name) {
			t.Fatalf("unexpected filename %q", name)
		}
	})

	t.Run("filename_without_session", func(t *testing.T) {
		w := NewWriter(t.TempDir(), "copilot", "")
		path, err := w.Write(map[string]string{"k": "v"})
		if err != nil {
			t.Fatal(err)
		}
		name := filepath.Base(path)
		re := regexp.MustCompile(`^copilot_\d+-000000\.json$`)
		if !re.MatchString(name) {
			t.Fatalf("unexpected filename %q", name)
		}
	})

	t.Run("sequence_disambiguates_same_millisecond", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(dir, "copilot", "")

		seen := map[string]bool{}
		for i := 0; i < 50; i++ {
			path, err := w.Write(map[string]int{"i": i})
			if err != nil {
				t.Fatal(err)
			}
			if seen[path] {
				t.Fatalf("duplicate filename %q", path)
			}
			seen[path] = true
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 50 {
			t.Fatalf("expected 50 files, found %d", len(entries))
		}
	})

	t.Run("concurrent_writes_get_distinct_files", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(dir, "copilot", "s1")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := w.Write(map[string]int{"i": i}); err != nil {
					t.Errorf("write %d: %v", i, err)
				}
			}(i)
		}
		wg.Wait()

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 20 {
			t.Fatalf("expected 20 files, found %d", len(entries))
		}
	})

	t.Run("no_temporary_files_left_visible", func(t *testing.T) {
		dir := t.TempDir()
		w := NewWriter(dir, "copilot", "")
		for i := 0; i < 10; i++ {
			if _, err := w.Write(map[string]int{"i": i}); err != nil {
				t.Fatal(err)
			}
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") || strings.HasSuffix(e.Name(), ".tmp") {
				t.Errorf("temporary file %q visible after write", e.Name())
			}
			// Every published file must be complete, parseable JSON.
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				t.Fatal(err)
			}
			var v map[string]int
			if err := json.Unmarshal(data, &v); err != nil {
				t.Errorf("file %q not complete JSON: %v", e.Name(), err)
			}
		}
	})

	t.Run("creates_nested_directories", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b", "captures")
		w := NewWriter(dir, "copilot", "")
		if _, err := w.Write(map[string]string{"k": "v"}); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("capture dir not created: %v", err)
		}
	})

	t.Run("unwritable_directory_returns_error", func(t *testing.T) {
		w := NewWriter("/proc/llmtap-definitely-not-writable", "copilot", "")
		if _, err := w.Write(map[string]string{"k": "v"}); err == nil {
			t.Fatal("expected error for unwritable directory")
		}
	})
}

func TestEncodeASCII(t *testing.T) {
	t.Run("escapes_non_ascii", func(t *testing.T) {
		data, err := encodeASCII(map[string]string{"msg": "héllo — ok"})
		if err != nil {
			t.Fatal(err)
		}
		for _, b := range data {
			if b >= 0x80 {
				t.Fatalf("non-ASCII byte 0x%02x in output %q", b, data)
			}
		}
		if !strings.Contains(string(data), `\u00e9`) {
			t.Errorf("expected \\u00e9 escape in %q", data)
		}
	})

	t.Run("astral_runes_use_surrogate_pairs", func(t *testing.T) {
		data, err := encodeASCII(map[string]string{"msg": "🎉"})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `\ud83c\udf89`) {
			t.Errorf("expected surrogate pair in %q", data)
		}
	})

	t.Run("round_trips", func(t *testing.T) {
		in := map[string]string{"msg": "héllo 🎉 world"}
		data, err := encodeASCII(in)
		if err != nil {
			t.Fatal(err)
		}
		var out map[string]string
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatal(err)
		}
		if out["msg"] != in["msg"] {
			t.Fatalf("round trip mismatch: %q != %q", out["msg"], in["msg"])
		}
	})
}
