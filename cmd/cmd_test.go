package cmd

import "testing"

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"chat":          false,
		"conversations": false,
		"serve":         false,
		"version":       false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}

func TestRootRunsChatByDefault(t *testing.T) {
	if rootCmd.RunE == nil {
		t.Fatal("root command should default to the chat loop")
	}
}
