package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsUsePrefix(t *testing.T) {
	files, err := fs.Glob(Migrations, "*.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no embedded migrations")
	}

	for _, name := range files {
		data, err := fs.ReadFile(Migrations, name)
		if err != nil {
			t.Fatal(err)
		}
		sql := string(data)
		if !strings.Contains(sql, "-- +goose Up") || !strings.Contains(sql, "-- +goose Down") {
			t.Errorf("%s: missing goose annotations", name)
		}
		if !strings.Contains(sql, "${"+PrefixEnv+"}") {
			t.Errorf("%s: table names must carry the prefix placeholder", name)
		}
	}
}
