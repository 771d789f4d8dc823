package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	configLayer = []string{"-c", "--c", "-config", "--config"}
	envLayer    = []string{"-env", "--env"}
	serverFlags = []string{"-a", "-grpc", "-d", "-s", "-t", "-m", "-l", "-u", "-p", "-b", "-g", "-e", "-k", "-q", "-w"}
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "server layer drops config and env flags",
			args:    []string{"-c", "modzart.json", "-a", ":8000", "-env", "prod.env", "-m", "s3"},
			allowed: serverFlags,
			want:    []string{"-a", ":8000", "-m", "s3"},
		},
		{
			name:    "server -e is not confused with -env",
			args:    []string{"-env", "prod.env", "-e", "http://127.0.0.1:9000/"},
			allowed: serverFlags,
			want:    []string{"-e", "http://127.0.0.1:9000/"},
		},
		{
			name:    "server layer drops --env= form",
			args:    []string{"--env=staging.env", "-q", "async", "-w", "4"},
			allowed: serverFlags,
			want:    []string{"-q", "async", "-w", "4"},
		},
		{
			name:    "env layer keeps only -env",
			args:    []string{"-a", ":8000", "-env", "prod.env", "-config", "modzart.json"},
			allowed: envLayer,
			want:    []string{"-env", "prod.env"},
		},
		{
			name:    "env layer with equals form",
			args:    []string{"--env=staging.env", "-d", "postgres://localhost/modzart"},
			allowed: envLayer,
			want:    []string{"--env=staging.env"},
		},
		{
			name:    "config layer ignores -env and -e",
			args:    []string{"-env", "prod.env", "-e", "http://minio:9000", "--config=alt.json"},
			allowed: configLayer,
			want:    []string{"--config=alt.json"},
		},
		{
			name:    "env flag followed by another flag has no value",
			args:    []string{"-env", "-a", ":8000"},
			allowed: envLayer,
			want:    []string{"-env"},
		},
		{
			name:    "trailing flag without value is kept",
			args:    []string{"-m", "local", "-k"},
			allowed: serverFlags,
			want:    []string{"-m", "local", "-k"},
		},
		{
			name:    "repeated flag preserved in order",
			args:    []string{"-env", "base.env", "-w", "2", "-env", "override.env"},
			allowed: envLayer,
			want:    []string{"-env", "base.env", "-env", "override.env"},
		},
		{
			name:    "positional arguments dropped",
			args:    []string{"serve", "-grpc", ":3200", "extra"},
			allowed: serverFlags,
			want:    []string{"-grpc", ":3200"},
		},
		{
			name:    "empty args yield empty non-nil slice",
			args:    []string{},
			allowed: envLayer,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupString(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		names []string
		want  string
	}{
		{
			name:  "env among server and config flags",
			args:  []string{"-a", ":8000", "-c", "modzart.json", "-env", "prod.env", "-m", "minio"},
			names: []string{"env"},
			want:  "prod.env",
		},
		{
			name:  "last env wins",
			args:  []string{"-env", "base.env", "-q", "sync", "--env=override.env"},
			names: []string{"env"},
			want:  "override.env",
		},
		{
			name:  "env followed by another flag is empty",
			args:  []string{"-env", "-d", "postgres://localhost/modzart"},
			names: []string{"env"},
			want:  "",
		},
		{
			name:  "-e value is not read as env",
			args:  []string{"-e", "http://127.0.0.1:9000/"},
			names: []string{"env"},
			want:  "",
		},
		{
			name:  "config under either name, last wins",
			args:  []string{"-c", "one.json", "-env", "x.env", "-config", "two.json"},
			names: []string{"c", "config"},
			want:  "two.json",
		},
		{
			name:  "server flag looked up alone",
			args:  []string{"-m", "s3", "-c", "x.json", "-d", "dsn"},
			names: []string{"m"},
			want:  "s3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LookupString(tt.args, tt.names...))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"modzart", "-env", "prod.env", "-c", "/etc/modzart/short.json"}
	assert.Equal(t, "/etc/modzart/short.json", JsonConfigFlags())

	os.Args = []string{"modzart", "-config", "/etc/modzart/long.json", "-a", ":8000"}
	assert.Equal(t, "/etc/modzart/long.json", JsonConfigFlags())

	os.Args = []string{"modzart", "-env", "prod.env"}
	assert.Empty(t, JsonConfigFlags())
}

func TestEnvFileFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"modzart", "-a", ":9000", "-c", "modzart.json", "-env", "prod.env"}
	assert.Equal(t, "prod.env", EnvFileFlags())

	os.Args = []string{"modzart", "--env=staging.env", "-e", "http://minio:9000"}
	assert.Equal(t, "staging.env", EnvFileFlags())

	os.Args = []string{"modzart", "-e", "http://minio:9000"}
	assert.Empty(t, EnvFileFlags())
}
