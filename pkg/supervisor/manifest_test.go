package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "children.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
children:
  - id: cache-primer
    worker: sleeper
    start_timeout: 2s
    args:
      wake_after: 250ms
  - id: kv-store
    worker: store
    mailbox_size: 8
    args:
      path: ":memory:"
`)

	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, manifest.Children, 2)

	primer := manifest.Children[0]
	assert.Equal(t, "cache-primer", primer.ID)
	assert.Equal(t, "sleeper", primer.Worker)
	assert.Equal(t, 2*time.Second, primer.StartTimeout.Std())
	assert.Equal(t, "250ms", primer.Args["wake_after"])

	store := manifest.Children[1]
	assert.Equal(t, 8, store.MailboxSize)
	assert.Equal(t, time.Duration(0), store.StartTimeout.Std())

	spec := store.Spec()
	assert.Equal(t, "kv-store", spec.ID)
	assert.Equal(t, "store", spec.WorkerType)
	assert.Equal(t, 8, spec.MailboxSize)
	assert.Equal(t, ":memory:", spec.Args["path"])
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadManifest_BadDuration(t *testing.T) {
	path := writeManifest(t, `
children:
  - id: a
    worker: sleeper
    start_timeout: eventually
`)
	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse duration")
}

func TestManifest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		wantErr  string
	}{
		{
			name:     "no children",
			manifest: Manifest{},
			wantErr:  "no children",
		},
		{
			name: "missing id",
			manifest: Manifest{Children: []ChildManifest{
				{Worker: "sleeper"},
			}},
			wantErr: "id is required",
		},
		{
			name: "missing worker",
			manifest: Manifest{Children: []ChildManifest{
				{ID: "a"},
			}},
			wantErr: "worker is required",
		},
		{
			name: "duplicate id",
			manifest: Manifest{Children: []ChildManifest{
				{ID: "a", Worker: "sleeper"},
				{ID: "a", Worker: "sleeper"},
			}},
			wantErr: "duplicate id",
		},
		{
			name: "valid",
			manifest: Manifest{Children: []ChildManifest{
				{ID: "a", Worker: "sleeper"},
				{ID: "b", Worker: "store"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
