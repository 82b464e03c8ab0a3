package server_test

import (
	"strings"
	"testing"
	"time"

	"github.com/opst/modelfab/pkg/configs/server"
)

func TestUnmarshal(t *testing.T) {
	t.Run("it loads config from yaml", func(t *testing.T) {
		result, err := server.Unmarshal([]byte(`
port: 12345
database: postgres://modelfab:secret@db:5432/modelfab
seed: /etc/modelfab/seed.yaml
snapshotCache: 4
queue:
  mode: sync
  policy: backlog
  timeout: 5s
  responseExpiry: 1h
downstream:
  definitions: https://definitions.example.com/api
  semantic: http://semantic.example.com
  codeList:
    id: 7
    descriptionAttribute: title
hooks: /etc/modelfab/hooks.yaml
`))
		if err != nil {
			t.Fatalf("failed to parse config.: %v", err)
		}

		if actual := result.Port(); actual != 12345 {
			t.Errorf(".port: %d", actual)
		}
		if actual := result.Database(); actual != "postgres://modelfab:secret@db:5432/modelfab" {
			t.Errorf(".database: %s", actual)
		}
		if actual := result.Seed(); actual != "/etc/modelfab/seed.yaml" {
			t.Errorf(".seed: %s", actual)
		}
		if actual := result.SnapshotCache(); actual != 4 {
			t.Errorf(".snapshotCache: %d", actual)
		}
		if actual := result.Queue().Mode(); actual != server.Sync {
			t.Errorf(".queue.mode: %s", actual)
		}
		if actual := result.Queue().Policy().String(); actual != "backlog" {
			t.Errorf(".queue.policy: %s", actual)
		}
		if actual := result.Queue().Timeout(); actual != 5*time.Second {
			t.Errorf(".queue.timeout: %s", actual)
		}
		if actual := result.Queue().ResponseExpiry(); actual != time.Hour {
			t.Errorf(".queue.responseExpiry: %s", actual)
		}
		if actual := result.Downstream().Definitions().String(); actual != "https://definitions.example.com/api" {
			t.Errorf(".downstream.definitions: %s", actual)
		}
		if actual := result.Downstream().Semantic().String(); actual != "http://semantic.example.com" {
			t.Errorf(".downstream.semantic: %s", actual)
		}
		if result.Downstream().CodeList() != 7 || result.Downstream().CodeListDescription() != "title" {
			t.Errorf(".downstream.codeList: %d, %s", result.Downstream().CodeList(), result.Downstream().CodeListDescription())
		}
		if actual := result.Hooks(); actual != "/etc/modelfab/hooks.yaml" {
			t.Errorf(".hooks: %s", actual)
		}
	})

	t.Run("it fills defaults", func(t *testing.T) {
		result, err := server.Unmarshal([]byte(`
seed: seed.yaml
downstream:
  definitions: https://definitions.example.com/api
  semantic: https://semantic.example.com/api
`))
		if err != nil {
			t.Fatalf("failed to parse config.: %v", err)
		}
		if result.Port() != server.DefaultPort {
			t.Errorf(".port: %d", result.Port())
		}
		if result.Database() != "" {
			t.Errorf(".database: %s", result.Database())
		}
		if result.SnapshotCache() != server.DefaultSnapshotCache {
			t.Errorf(".snapshotCache: %d", result.SnapshotCache())
		}
		if result.Queue().Mode() != server.Async {
			t.Errorf(".queue.mode: %s", result.Queue().Mode())
		}
		if result.Queue().Policy().String() != server.DefaultPolicy {
			t.Errorf(".queue.policy: %s", result.Queue().Policy())
		}
		if result.Queue().Timeout() != server.DefaultTimeout {
			t.Errorf(".queue.timeout: %s", result.Queue().Timeout())
		}
		if result.Queue().ResponseExpiry() != server.DefaultResponseExpiry {
			t.Errorf(".queue.responseExpiry: %s", result.Queue().ResponseExpiry())
		}
		if result.Downstream().CodeList() != 0 {
			t.Errorf(".downstream.codeList: %d", result.Downstream().CodeList())
		}
	})

	for name, testcase := range map[string]struct {
		yaml string
		then string
	}{
		"empty": {
			yaml: ``,
			then: "empty",
		},
		"missing seed": {
			yaml: `
downstream:
  definitions: https://definitions.example.com/api
  semantic: https://semantic.example.com/api
`,
			then: "(root).seed is required",
		},
		"missing downstream": {
			yaml: `seed: seed.yaml`,
			then: "(root).downstream is required",
		},
		"non http downstream": {
			yaml: `
seed: seed.yaml
downstream:
  definitions: ftp://definitions.example.com/api
  semantic: https://semantic.example.com/api
`,
			then: "(root).downstream.definitions should be a http(s) URL",
		},
		"negative response expiry": {
			yaml: `
seed: seed.yaml
queue:
  responseExpiry: -1h
downstream:
  definitions: https://definitions.example.com/api
  semantic: https://semantic.example.com/api
`,
			then: "(root).queue.responseExpiry should be positive",
		},
		"unknown mode": {
			yaml: `
seed: seed.yaml
queue:
  mode: later
downstream:
  definitions: https://definitions.example.com/api
  semantic: https://semantic.example.com/api
`,
			then: "(root).queue.mode",
		},
		"broken policy": {
			yaml: `
seed: seed.yaml
queue:
  policy: sometimes
downstream:
  definitions: https://definitions.example.com/api
  semantic: https://semantic.example.com/api
`,
			then: "(root).queue.policy",
		},
		"broken timeout": {
			yaml: `
seed: seed.yaml
queue:
  timeout: soon
downstream:
  definitions: https://definitions.example.com/api
  semantic: https://semantic.example.com/api
`,
			then: "(root).queue.timeout",
		},
		"code-list without id": {
			yaml: `
seed: seed.yaml
downstream:
  definitions: https://definitions.example.com/api
  semantic: https://semantic.example.com/api
  codeList:
    descriptionAttribute: title
`,
			then: "(root).downstream.codeList.id is required",
		},
	} {
		t.Run("misconfiguration: "+name, func(t *testing.T) {
			_, err := server.Unmarshal([]byte(testcase.yaml))
			if err == nil {
				t.Fatal("expected error, but nil")
			}
			if !strings.Contains(err.Error(), testcase.then) {
				t.Errorf("error %q does not mention %q", err, testcase.then)
			}
		})
	}
}
