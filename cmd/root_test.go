package cmd

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/lukeslp/joshua-project-data/api"
	"github.com/lukeslp/joshua-project-data/test"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestRootCommand(t *testing.T) {
	rc := NewRootCommand(os.Stdin, ioutil.Discard, ioutil.Discard)
	var names []string
	for _, c := range rc.Commands() {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	test.MustBe(t, []string{"enrich", "fetch", "geo", "publish", "schedule", "viz"}, names)
}

func TestSetAllConfig(t *testing.T) {
	dir := test.MustTempDir(t)
	conf := filepath.Join(dir, "jpdata.toml")
	test.ErrNil(t, ioutil.WriteFile(conf, []byte(`
output-dir = "/from/config"
limit = 50
datasets = ["countries", "languages"]
timeout = "5s"
`), 0644), "writing config")
	os.Setenv("JPDATA_LIMIT", "75")
	defer os.Unsetenv("JPDATA_LIMIT")

	m := api.NewMain()
	fs := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	test.ErrNil(t, commandeer.Flags(fs, m), "building flags")
	fs.String("config", "", "")
	test.ErrNil(t, fs.Parse([]string{"--config", conf, "--retries", "7"}), "parsing")
	test.ErrNil(t, setAllConfig(viper.New(), fs, EnvPrefix), "setAllConfig")

	test.MustBe(t, "/from/config", m.OutputDir, "config file")
	test.MustBe(t, 75, m.Limit, "environment over config file")
	test.MustBe(t, 7, m.Retries, "flag")
	test.MustBe(t, []string{"countries", "languages"}, m.Datasets, "slice from config file")
	test.MustBe(t, 5*time.Second, m.Timeout, "duration from config file")
	test.MustBe(t, api.DefaultBaseURL, m.BaseURL, "default")
}
