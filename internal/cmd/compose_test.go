package cmd

import (
	"testing"

	"github.com/spf13/viper"
)

func TestRunComposeRequiresDistrictID(t *testing.T) {
	defer viper.Reset()
	viper.Reset()
	viper.Set("district-id", "")
	viper.Set("bucket", "")
	viper.Set("work-dir", t.TempDir())

	err := runCompose(composeCmd, nil)
	if err == nil {
		t.Fatalf("expected error for missing district-id/bucket")
	}
}

func TestComposeCommandRegistered(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Use == "compose" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected compose subcommand to be registered on rootCmd")
	}
}
