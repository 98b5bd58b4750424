package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	allowed := []string{"-c", "--config"}

	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "keeps short flag and its value",
			args:         []string{"-c", "conf.json", "-a", ":8080"},
			allowedFlags: allowed,
			want:         []string{"-c", "conf.json"},
		},
		{
			name:         "keeps equals form",
			args:         []string{"--config=alt.json", "-a", ":8080"},
			allowedFlags: allowed,
			want:         []string{"--config=alt.json"},
		},
		{
			name:         "drops everything when nothing is allowed",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: allowed,
			want:         []string{},
		},
		{
			name:         "trailing flag without value survives",
			args:         []string{"-b", "memory", "-c"},
			allowedFlags: allowed,
			want:         []string{"-c"},
		},
		{
			name:         "next flag is not consumed as a value",
			args:         []string{"-c", "--config=alt.json"},
			allowedFlags: allowed,
			want:         []string{"-c", "--config=alt.json"},
		},
		{
			name:         "equals form may carry a dash-prefixed value",
			args:         []string{"--config=--odd.json"},
			allowedFlags: []string{"--config"},
			want:         []string{"--config=--odd.json"},
		},
		{
			name:         "order preserved across several allowed flags",
			args:         []string{"-a", ":9090", "-x", "1", "-c", "conf.json"},
			allowedFlags: []string{"-a", "-c"},
			want:         []string{"-a", ":9090", "-c", "conf.json"},
		},
		{
			name:         "repeated flag kept each time",
			args:         []string{"-c", "one.json", "-c", "two.json"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c", "one.json", "-c", "two.json"},
		},
		{
			name:         "empty input yields empty output",
			args:         []string{},
			allowedFlags: allowed,
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short form", func(t *testing.T) {
		os.Args = []string{"forge", "-c", "/etc/forge/conf.json"}
		assert.Equal(t, "/etc/forge/conf.json", JsonConfigFlags())
	})

	t.Run("long form", func(t *testing.T) {
		os.Args = []string{"forge", "-config", "/etc/forge/conf.json"}
		assert.Equal(t, "/etc/forge/conf.json", JsonConfigFlags())
	})

	t.Run("absent flag yields empty path", func(t *testing.T) {
		os.Args = []string{"forge", "-b", "postgres", "-a", ":8080"}
		assert.Empty(t, JsonConfigFlags())
	})

	t.Run("later flag wins", func(t *testing.T) {
		os.Args = []string{"forge", "-c", "/tmp/a.json", "-config", "/tmp/b.json"}
		assert.Equal(t, "/tmp/b.json", JsonConfigFlags())
	})
}
