package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/photosync/internal/client"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize access to the photo library",
	Long: `Login runs the OAuth installed-app flow with the client secrets file
configured as auth.client_secrets_file and stores the token in auth.token_file.`,
	Example: `  photosync login
  photosync login --code 4/0Adeu5B...`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored token",
	RunE:  runLogout,
}

var loginCode string

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringVar(&loginCode, "code", "",
		"Authorization code (will prompt if not provided)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	authService, err := client.NewAuth(cfg, logger)
	if err != nil {
		return err
	}

	if loginCode == "" {
		authURL, _ := authService.AuthCodeURL()
		printInfo("Open this URL in a browser and authorize access:\n\n  %s\n", authURL)

		loginCode, err = readLine(os.Stdin, os.Stderr, "Authorization code: ")
		if err != nil {
			return err
		}
	}

	if err := authService.Login(ctx, loginCode); err != nil {
		return err
	}

	_, expiry := authService.Status()

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success": true,
			"expiry":  expiry,
		})
	} else {
		printSuccess("Successfully logged in, token stored in %s", cfg.Auth.TokenFile)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	authService, err := client.NewAuth(cfg, logger)
	if err != nil {
		return err
	}
	if err := authService.Logout(); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true})
	} else {
		printSuccess("Logged out")
	}
	return nil
}
