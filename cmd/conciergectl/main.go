package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag   string
	tokenFlag string
	rootCmd   = &cobra.Command{
		Use:   "conciergectl",
		Short: "CLI client for the concierge REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Concierge service base URL")
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "Session token from 'conciergectl login'")

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a phone number and print a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			phone, _ := cmd.Flags().GetString("phone")
			return runLogin(apiFlag, phone, os.Stdout)
		},
	}
	loginCmd.Flags().StringP("phone", "p", "", "Phone number, e.g. +10000000001 (required)")
	_ = loginCmd.MarkFlagRequired("phone")
	rootCmd.AddCommand(loginCmd)

	chatCmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message to the assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenFlag == "" {
				return fmt.Errorf("--token required")
			}
			return runChat(apiFlag, tokenFlag, args, os.Stdout)
		},
	}
	rootCmd.AddCommand(chatCmd)

	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a user's balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			if tokenFlag == "" || user == "" {
				return fmt.Errorf("--token and --user required")
			}
			return runBalance(apiFlag, tokenFlag, user, os.Stdout)
		},
	}
	balanceCmd.Flags().StringP("user", "u", "", "User ID (required)")
	rootCmd.AddCommand(balanceCmd)

	productsCmd := &cobra.Command{
		Use:   "products",
		Short: "List the product catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProducts(apiFlag, os.Stdout)
		},
	}
	rootCmd.AddCommand(productsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
