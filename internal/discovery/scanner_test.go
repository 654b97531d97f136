package discovery

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestScanner_Scan(t *testing.T) {
	project := t.TempDir()
	for _, name := range []string{
		"tests/Unit/UserTest.php",
		"tests/Unit/helpers.php",
		"tests/Feature/Api/OrderTest.php",
		"tests/Feature/PaymentTest.php",
		"tests/.cache/StaleTest.php",
		"vendor/phpunit/phpunit/tests/FrameworkTest.php",
		"storage/framework/CachedTest.php",
	} {
		writeTestFile(t, project, name, "<?php\n")
	}

	files, err := NewScanner([]string{"vendor", "storage"}).Scan(project)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []string
	for _, f := range files {
		rel, _ := filepath.Rel(project, f)
		got = append(got, filepath.ToSlash(rel))
	}
	want := []string{
		"tests/Feature/Api/OrderTest.php",
		"tests/Feature/PaymentTest.php",
		"tests/Unit/UserTest.php",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestScanner_RootIsNeverSkipped(t *testing.T) {
	root := filepath.Join(t.TempDir(), "storage")
	writeTestFile(t, root, "ExportTest.php", "<?php\n")

	files, err := NewScanner([]string{"storage"}).Scan(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected the root's test file, got %v", files)
	}
}

func TestScanner_InvalidRoot(t *testing.T) {
	dir := t.TempDir()
	file := writeTestFile(t, dir, "UserTest.php", "<?php\n")

	tests := []struct {
		name string
		root string
		want string
	}{
		{"missing", filepath.Join(dir, "missing"), "test path does not exist"},
		{"file", file, "test path is not a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScanner(nil).Scan(tt.root)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
