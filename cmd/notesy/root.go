package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"notesy/internal/client"
	"notesy/internal/logging"
)

var (
	apiURL      string
	sessionPath string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:           "notesy",
	Short:         "Command line client for the notesy API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logging.Init(logging.Config{Level: level, Format: "console"})
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	def := os.Getenv("NOTESY_API")
	if def == "" {
		def = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", def, "API base URL (env NOTESY_API)")
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session", "", "Session file (default $XDG_CONFIG_HOME/notesy/session.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// newClient rehydrates the stored session.
func newClient() (*client.Client, error) {
	path := sessionPath
	if path == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	s, err := client.LoadSession(path)
	if err != nil {
		return nil, err
	}
	return client.New(apiURL, s), nil
}

func authedClient() (*client.Client, error) {
	c, err := newClient()
	if err != nil {
		return nil, err
	}
	if !c.Session.Authenticated() {
		return nil, fmt.Errorf("not logged in, run 'notesy login' first")
	}
	return c, nil
}
