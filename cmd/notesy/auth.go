package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	authUsername string
	authEmail    string
	authPassword string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Register(cmd.Context(), authUsername, authEmail, authPassword); err != nil {
			return err
		}
		fmt.Printf("Registered and logged in as %s.\n", c.Session.User.Username)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Login(cmd.Context(), authEmail, authPassword); err != nil {
			return err
		}
		fmt.Printf("Logged in as %s.\n", c.Session.User.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		u, err := c.Me(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s>\n", u.Username, u.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd)

	registerCmd.Flags().StringVarP(&authUsername, "username", "u", "", "Username")
	_ = registerCmd.MarkFlagRequired("username")
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVarP(&authEmail, "email", "e", "", "Email")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "Password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
}
