package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConnectionString(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}
	withDatabase := write("with-db.yaml", `
database: postgres://modelfab@db/modelfab
seed: /etc/modelfab/seed.yaml
downstream:
  definitions: http://definitions
  semantic: http://semantic
`)
	inMemory := write("in-memory.yaml", `
seed: /etc/modelfab/seed.yaml
downstream:
  definitions: http://definitions
  semantic: http://semantic
`)

	for name, testcase := range map[string]struct {
		when    Flag
		then    string
		wantErr bool
	}{
		"database flag takes precedence": {
			when: Flag{Database: "postgres://other/db", Config: withDatabase},
			then: "postgres://other/db",
		},
		"database in config": {
			when: Flag{Config: withDatabase},
			then: "postgres://modelfab@db/modelfab",
		},
		"config without database": {
			when:    Flag{Config: inMemory},
			wantErr: true,
		},
		"nothing given": {
			wantErr: true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual, err := connectionString(testcase.when)
			if testcase.wantErr {
				if err == nil {
					t.Errorf("no error: %s", actual)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if actual != testcase.then {
				t.Errorf("connection string: %s", actual)
			}
		})
	}
}
