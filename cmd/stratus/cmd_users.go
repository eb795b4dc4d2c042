package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratus-ops/stratus/internal/ipecho"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage authorized console operators",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active authorized users",
	RunE:  runUsersList,
}

var usersAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Authorize an operator, reviving a previously removed one",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersAdd,
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Revoke an operator (soft delete)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersRemove,
}

var ipCmd = &cobra.Command{
	Use:   "ip",
	Short: "Print this host's public IPv4 address",
	RunE: func(cmd *cobra.Command, args []string) error {
		ip, err := ipecho.New().PublicIPv4(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(ip)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(ipCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersRemoveCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	users, err := a.store.ListAuthorizedUsers(cmd.Context())
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Println(u.Email)
	}
	return nil
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.UpsertAuthorizedUser(cmd.Context(), args[0], nil); err != nil {
		return err
	}
	fmt.Printf("%s authorized\n", args[0])
	return nil
}

func runUsersRemove(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SoftDeleteAuthorizedUser(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("%s revoked\n", args[0])
	return nil
}
